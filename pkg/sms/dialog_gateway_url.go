package sms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DialogURLBaseURL is Dialog's GET campaign endpoint
const DialogURLBaseURL = "https://e-sms.dialog.lk/api/v1/message-via-url/create/url-campaign"

var nonDigits = regexp.MustCompile(`[^0-9]`)

// DialogURLGateway implements SMS sending using Dialog's GET request API (URL method)
// This method uses an esmsqk key instead of username/password authentication
type DialogURLGateway struct {
	apiKey  string // esmsqk key from Dialog portal
	mask    string // Source address/mask
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewDialogURLGateway creates a new Dialog URL gateway instance
func NewDialogURLGateway(apiKey, mask string, logger *logrus.Logger) *DialogURLGateway {
	return &DialogURLGateway{
		apiKey:  apiKey,
		mask:    mask,
		baseURL: DialogURLBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// FormatPhoneForDialog normalizes a Sri Lankan mobile number to the 9-digit 7XXXXXXXX form
func FormatPhoneForDialog(phone string) (string, error) {
	phone = nonDigits.ReplaceAllString(phone, "")

	if strings.HasPrefix(phone, "94") && len(phone) == 11 {
		phone = phone[2:]
	}
	if strings.HasPrefix(phone, "0") && len(phone) == 10 {
		phone = phone[1:]
	}

	if len(phone) != 9 {
		return "", fmt.Errorf("invalid phone number length after formatting: %d digits (expected 9)", len(phone))
	}
	if !strings.HasPrefix(phone, "7") {
		return "", fmt.Errorf("invalid Sri Lankan mobile prefix: must start with 7")
	}
	return phone, nil
}

// Send sends message via Dialog's URL-based SMS API
func (d *DialogURLGateway) Send(ctx context.Context, phone, message string) error {
	formattedPhone, err := FormatPhoneForDialog(phone)
	if err != nil {
		return fmt.Errorf("invalid phone number: %w", err)
	}

	params := url.Values{}
	params.Add("esmsqk", d.apiKey)
	params.Add("list", formattedPhone)
	params.Add("source_address", d.mask)
	params.Add("message", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build SMS request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read SMS response: %w", err)
	}
	responseStr := strings.TrimSpace(string(body))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("SMS API returned status %d: %s", resp.StatusCode, responseStr)
	}

	// Dialog returns "1" for success, or an error id
	if responseStr != "1" {
		return fmt.Errorf("SMS sending failed with error code: %s", responseStr)
	}

	d.logger.WithField("phone", formattedPhone).Debug("SMS sent via Dialog")
	return nil
}

// GetName returns the name of this SMS gateway
func (d *DialogURLGateway) GetName() string {
	return "Dialog URL Gateway"
}
