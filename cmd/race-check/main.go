package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/localserve/booking-backend/internal/config"
	"github.com/localserve/booking-backend/internal/database"
	"github.com/localserve/booking-backend/internal/lifecycle"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/internal/scheduling"
	"github.com/localserve/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// race-check fires concurrent booking requests for one slot against a real
// database and verifies exactly one of them wins.
func main() {
	var workers int
	flag.IntVar(&workers, "workers", 50, "number of concurrent customers racing for the slot")
	flag.Parse()

	fmt.Println("Booking race check")
	fmt.Println("------------------")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	location, err := cfg.Scheduling.Location()
	if err != nil {
		log.Fatalf("Invalid timezone: %v", err)
	}
	dayStart, err := models.ParseClock(cfg.Scheduling.DefaultDayStart)
	if err != nil {
		log.Fatalf("Invalid business hours: %v", err)
	}
	dayEnd, err := models.ParseClock(cfg.Scheduling.DefaultDayEnd)
	if err != nil {
		log.Fatalf("Invalid business hours: %v", err)
	}

	bookingRepository := database.NewBookingRepository(db.DB)
	serviceRepository := database.NewServiceRepository(db.DB)
	workingHoursRepository := database.NewWorkingHoursRepository(db.DB)
	userRepository := database.NewUserRepository(db.DB)

	bookingService := services.NewBookingService(services.BookingServiceDeps{
		Bookings:     bookingRepository,
		Services:     serviceRepository,
		WorkingHours: workingHoursRepository,
		Users:        userRepository,
		Guard:        services.NewConflictGuard(bookingRepository, logger, cfg.Scheduling.ReservationTxTimeout),
		Machine:      lifecycle.NewMachine(lifecycle.Policy{}),
		Logger:       logger,
	}, services.BookingServiceConfig{
		Location:       location,
		DefaultWindows: scheduling.DefaultWindows(dayStart, dayEnd),
	})
	catalogueService := services.NewCatalogueService(serviceRepository, workingHoursRepository, logger)

	ctx := context.Background()

	providerID := uuid.New()
	if _, err := userRepository.EnsureUser(ctx, providerID, models.UserRoleProvider); err != nil {
		log.Fatalf("Failed to create provider: %v", err)
	}
	service, err := catalogueService.CreateService(ctx, providerID, models.CreateServiceRequest{
		Title:           "Race check",
		Category:        string(models.ServiceCategoryCleaning),
		BasePrice:       "1000.00",
		DurationMinutes: 60,
	})
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	customers := make([]uuid.UUID, workers)
	for i := range customers {
		customers[i] = uuid.New()
		if _, err := userRepository.EnsureUser(ctx, customers[i], models.UserRoleCustomer); err != nil {
			log.Fatalf("Failed to create customer: %v", err)
		}
	}

	tomorrow := time.Now().In(location).AddDate(0, 0, 1)
	start := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, location).
		Add(time.Duration(dayStart) * time.Minute)

	fmt.Printf("Service %s, slot %s, %d customers\n", service.ID, start.Format(time.RFC3339), workers)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		overlaps  int
		failures  []error
		ready     = make(chan struct{})
	)
	for _, customerID := range customers {
		wg.Add(1)
		go func(customerID uuid.UUID) {
			defer wg.Done()
			<-ready
			_, err := bookingService.CreateBooking(ctx, services.CreateBookingParams{
				ServiceID:  service.ID,
				CustomerID: customerID,
				ActorRole:  models.UserRoleCustomer,
				StartTime:  start,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, models.ErrOverlap):
				overlaps++
			default:
				failures = append(failures, err)
			}
		}(customerID)
	}

	began := time.Now()
	close(ready)
	wg.Wait()

	fmt.Printf("Finished in %s: %d succeeded, %d rejected as overlapping, %d failed\n",
		time.Since(began).Round(time.Millisecond), succeeded, overlaps, len(failures))
	for _, err := range failures {
		fmt.Printf("  error: %v\n", err)
	}

	if succeeded != 1 {
		log.Fatalf("FAILED: expected exactly one booking, got %d", succeeded)
	}
	fmt.Println("OK: exactly one booking holds the slot")
}
