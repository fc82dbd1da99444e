package mail_fx

import (
	"go.uber.org/fx"

	"habitloop/internal/config"
	"habitloop/internal/logger"
	"habitloop/internal/services"
)

var Module = fx.Provide(provideMailService)

func provideMailService(cfg *config.Config, log *logger.Logger) services.IMailService {
	if cfg.Mail.UsePostmark() {
		log.Infow("sending notifications through Postmark")
	} else {
		log.Infow("sending notifications through SMTP", "host", cfg.Mail.SMTPHost, "port", cfg.Mail.SMTPPort)
	}
	return services.NewMailService(cfg.Mail)
}
