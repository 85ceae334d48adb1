package config

// NotifxConfig configures the notification system.
type NotifxConfig struct {
	Provider    string `env:"PROVIDER" envDefault:"console"`
	FromAddress string `env:"FROM_ADDRESS" envDefault:"noreply@gatekeeper.local"`
	FromName    string `env:"FROM_NAME" envDefault:"Gatekeeper"`
	AWSRegion   string `env:"AWS_REGION" envDefault:"us-east-1"`
	// SESConfigSet routes SES sends through a configuration set for event publishing
	SESConfigSet string `env:"SES_CONFIG_SET"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	// TemplateDir holds mail template overrides, empty keeps the built-in ones
	TemplateDir string `env:"TEMPLATE_DIR"`
}
