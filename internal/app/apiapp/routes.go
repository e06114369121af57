package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/config"
	authsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/auth"
	chattokensvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/chattokens"
	filesvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/files"
	paymentsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/payments"
	ratesvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/rate"
	supportsvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/support"
	twofasvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/twofa"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService      *authsvc.Service
	LoginLimiter     *ratesvc.Limiter
	PaymentLimiter   *ratesvc.Limiter
	PaymentService   *paymentsvc.Service
	ChatTokenService *chattokensvc.Service
	TwoFAService     *twofasvc.Service
	SupportService   *supportsvc.Service
	FileService      *filesvc.Service
	Logger           *zap.Logger
	Config           config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	paymentHandler := handlers.NewPaymentHandler(deps.PaymentService)
	chatTokenHandler := handlers.NewChatTokenHandler(deps.ChatTokenService, deps.Config.Chat.APIKey)
	twoFAHandler := handlers.NewTwoFAHandler(deps.TwoFAService)
	supportHandler := handlers.NewSupportHandler(deps.SupportService)
	filesHandler := handlers.NewFilesHandler(deps.FileService)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	loginRateMW := RateLimit(deps.LoginLimiter, deps.Logger)
	paymentRateMW := RateLimit(deps.PaymentLimiter, deps.Logger)

	r.Get("/healthz", healthHandler.Healthz)

	r.Route("/payments", func(r chi.Router) {
		r.With(paymentRateMW).Post("/", paymentHandler.Create)
		r.Post("/webhook", paymentHandler.Webhook)
		r.Get("/{payment_id}/status", paymentHandler.Status)
		r.Post("/course-access", paymentHandler.CourseAccess)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.With(loginRateMW).Post("/login", authHandler.Login)
		r.Get("/validate", authHandler.Validate)
		r.Get("/chat-token", authHandler.LoginWithChatToken)
		r.With(authMW).Post("/change-password", authHandler.ChangePassword)
	})

	r.Route("/chat-tokens", func(r chi.Router) {
		r.Post("/", chatTokenHandler.Issue)
		r.Get("/verify", chatTokenHandler.Verify)
	})

	r.Route("/admin/2fa", func(r chi.Router) {
		r.Post("/send-code", twoFAHandler.SendCode)
		r.Post("/verify-code", twoFAHandler.VerifyCode)
		r.With(authMW, RequireAdmin()).Post("/totp/enroll", twoFAHandler.EnrollTOTP)
		r.Post("/totp/verify", twoFAHandler.VerifyTOTP)
	})

	r.Route("/support", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/messages", supportHandler.History)
		r.Post("/messages", supportHandler.Send)
	})

	r.Route("/admin/support", func(r chi.Router) {
		r.Use(authMW)
		r.Get("/chats", supportHandler.AdminChats)
		r.Get("/chats/{user_id}/messages", supportHandler.AdminHistory)
		r.Post("/chats/{user_id}/messages", supportHandler.AdminSend)
	})

	r.Route("/files", func(r chi.Router) {
		r.With(authMW).Get("/", filesHandler.List)
		r.With(authMW).Post("/", filesHandler.Upload)
		r.With(authMW).Post("/register", filesHandler.Register)
		r.With(authMW).Delete("/{file_id}", filesHandler.Delete)
	})
}
