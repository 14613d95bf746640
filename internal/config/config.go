package config

type Config struct {
	BaseURL  string
	HttpPort int
	Db       struct {
		Dsn         string
		Automigrate bool
	}
	Redis struct {
		Addr string
		DB   int
	}
	Jwt struct {
		SecretKey string
	}
	Signup struct {
		SessionTTLMinutes int
		OtpTTLSeconds     int
	}
	Notifications struct {
		Email string
	}
	Smtp struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}
	FileUploader struct {
		CloudName string
		ApiKey    string
		ApiSecret string
	}
	KafkaServers string
}
