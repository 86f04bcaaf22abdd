package bootstrap

import (
	"context"
	"log"

	"volunteer-scheduling-be/internal/config"
	"volunteer-scheduling-be/internal/controller"
	"volunteer-scheduling-be/internal/gateway/stripegateway"
	"volunteer-scheduling-be/internal/pkg/logger"
	"volunteer-scheduling-be/internal/pkg/mailer"
	"volunteer-scheduling-be/internal/repository/unitofwork"
	"volunteer-scheduling-be/internal/service"

	pktNats "volunteer-scheduling-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SubscriptionController  controller.ISubscriptionController
	WebhookController       controller.IWebhookController
	PaymentMethodController controller.IPaymentMethodController
	PlanController          controller.IPlanController
	UsageController         controller.IUsageController

	// Background services (exposed for main.go to run)
	ReconcilerService service.IReconcilerService
	JobsService       service.IJobsService

	// Shared infrastructure
	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
		cfg.App.ClientURL,
	)

	// 2. Event bus (in-process queue for the webhook worker)
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	paymentGateway := stripegateway.New(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.ProductId)

	// 3. Services
	var bus service.EventBus
	if natsPub != nil {
		bus = natsPub
	}

	usageService := service.NewUsageService(uowFactory, rdb, sysLogger)
	if natsSub != nil {
		if err := service.RegisterUsageListeners(natsSub, usageService, sysLogger); err != nil {
			log.Printf("[WARN] Failed to register roster usage listeners: %v", err)
		}
	}
	subscriptionService := service.NewSubscriptionService(uowFactory, paymentGateway, usageService, bus, sysLogger)
	planService := service.NewPlanService(uowFactory)
	paymentMethodService := service.NewPaymentMethodService(uowFactory, paymentGateway)

	webhookLogger := logger.NewIsolatedLogger(cfg.App.WebhookLogFilePath)
	reconcilerService := service.NewReconcilerService(
		uowFactory,
		paymentGateway,
		pubSub,
		usageService,
		emailService,
		bus,
		webhookLogger,
	)

	jobsService := service.NewJobsService(uowFactory, paymentGateway, usageService, bus, sysLogger)

	// 4. Controllers
	return &Container{
		SubscriptionController:  controller.NewSubscriptionController(subscriptionService),
		WebhookController:       controller.NewWebhookController(reconcilerService, webhookLogger),
		PaymentMethodController: controller.NewPaymentMethodController(paymentMethodService),
		PlanController:          controller.NewPlanController(planService),
		UsageController:         controller.NewUsageController(usageService),

		ReconcilerService: reconcilerService,
		JobsService:       jobsService,

		Logger: sysLogger,
	}
}
