package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"unimarket/internal/config"
	"unimarket/internal/domain/model"
	"unimarket/internal/events"
	"unimarket/internal/handler"
	"unimarket/internal/infra/db"
	infraRepo "unimarket/internal/infra/repository"
	"unimarket/internal/notify"
	"unimarket/internal/server"
	"unimarket/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

type jwtIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

func newJWTIssuer(secret string) *jwtIssuer {
	return &jwtIssuer{
		secret:    []byte(secret),
		accessTTL: 24 * time.Hour,
	}
}

func (i *jwtIssuer) Issue(userID int64, role model.Role, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.accessTTL)

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": string(role),
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func main() {
	//.envは無くても環境変数で動く
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		log.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.ProductVariant{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Notification{},
		&model.AuditLog{},
	); err != nil {
		log.Error("failed to migrate", "error", err)
		os.Exit(1)
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	variantRepo := infraRepo.NewVariantGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	notificationRepo := infraRepo.NewNotificationGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//Redis（未設定なら通知のリアルタイム配信なしで動く）
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	notifier := notify.NewNotifier(notificationRepo, userRepo, rdb, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//Kafka（未設定ならイベント発行なしで動く）
	var publisher usecase.OrderEventPublisher = usecase.NopEventPublisher{}
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, 256, log)
		producer.Start(ctx)
		publisher = producer
	}

	//Usecase生成
	snapshot := usecase.NewCartSnapshotReader(cartItemRepo)
	authUC := usecase.NewAuthUsecase(userRepo, newJWTIssuer(cfg.JWTSecret))
	cartUC := usecase.NewCartUsecase(cartItemRepo, productRepo, variantRepo)
	orderUC := usecase.NewOrderUsecase(
		txManager, snapshot, cartItemRepo, productRepo, userRepo,
		orderRepo, orderItemRepo, notifier, publisher, log,
	)
	statusUC := usecase.NewOrderStatusUsecase(
		txManager, orderRepo, orderItemRepo, notifier, log,
	)
	notificationUC := usecase.NewNotificationUsecase(notificationRepo)

	//Handler生成
	e := server.New(cfg, server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Cart:         handler.NewCartHandler(cartUC),
		Order:        handler.NewOrderHandler(orderUC, statusUC),
		AdminOrder:   handler.NewAdminOrderHandler(statusUC),
		Payment:      handler.NewPaymentHandler(orderUC, statusUC),
		Notification: handler.NewNotificationHandler(notificationUC),
	})

	//Server起動
	go func() {
		if err := server.Start(e, cfg.Port); err != nil {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn("failed to shutdown server", "error", err)
	}
	if producer != nil {
		producer.WaitClosed()
	}
}
