package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMongo    = "mongo"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	defaultConfigFile = "config/config.yaml"
)

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ClientURL       string        `yaml:"clientURL"`
	StaticDir       string        `yaml:"staticDir"`
	UploadDir       string        `yaml:"uploadDir"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type DatabaseConfig struct {
	Driver         string        `yaml:"driver"`
	MongoURI       string        `yaml:"mongoURI"`
	MongoDatabase  string        `yaml:"mongoDatabase"`
	DSN            string        `yaml:"dsn"`
	ConnectRetries int           `yaml:"connectRetries"`
	ConnectDelay   time.Duration `yaml:"connectDelay"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
}

type JWTConfig struct {
	PrivateKeyPath string        `yaml:"privateKeyPath"`
	PublicKeyPath  string        `yaml:"publicKeyPath"`
	TTL            time.Duration `yaml:"ttl"`
}

type SMTPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	PublicURL string `yaml:"publicURL"`
}

type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`
	OrderTopic string   `yaml:"orderTopic"`
}

// AdminConfig 啟動時若不存在則建立的管理員帳號
type AdminConfig struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	JWT      JWTConfig      `yaml:"jwt"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Minio    MinioConfig    `yaml:"minio"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Admin    AdminConfig    `yaml:"admin"`
	Log      LogConfig      `yaml:"log"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "5000",
			StaticDir:       "../frontend/dist",
			UploadDir:       "./uploads",
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:         DriverMongo,
			MongoDatabase:  "shop",
			ConnectRetries: 5,
			ConnectDelay:   5 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		JWT: JWTConfig{
			TTL: 24 * time.Hour,
		},
		SMTP: SMTPConfig{
			Port: "587",
		},
		Kafka: KafkaConfig{
			OrderTopic: "orders",
		},
		Admin: AdminConfig{
			Name: "Admin",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig 讀取YAML設定檔，覆蓋在預設值上
func LoadConfig(filename string) (Config, error) {
	config := Default()
	file, err := os.Open(filename)
	if err != nil {
		return config, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return config, err
	}

	return config, nil
}

// Load 依序套用預設值、設定檔(可省略)、.env 與環境變數，並驗證結果
func Load() (Config, error) {
	//.env 不存在不代表錯誤
	_ = godotenv.Load()

	filename := os.Getenv("CONFIG_FILE")
	explicit := filename != ""
	if !explicit {
		filename = defaultConfigFile
	}

	config, err := LoadConfig(filename)
	if err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return config, fmt.Errorf("load config file %s: %w", filename, err)
		}
		config = Default()
	}

	if err := config.applyEnv(); err != nil {
		return config, err
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.ClientURL, "CLIENT_URL")
	setString(&c.Server.StaticDir, "STATIC_DIR")
	setString(&c.Server.UploadDir, "UPLOAD_DIR")

	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.MongoURI, "MONGO_URI")
	setString(&c.Database.MongoDatabase, "MONGO_DB")
	setString(&c.Database.DSN, "DATABASE_DSN")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.JWT.PrivateKeyPath, "JWT_PRIVATE_KEY_PATH")
	setString(&c.JWT.PublicKeyPath, "JWT_PUBLIC_KEY_PATH")

	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Port, "SMTP_PORT")
	setString(&c.SMTP.User, "SMTP_USER")
	setString(&c.SMTP.Password, "SMTP_PASSWORD")
	setString(&c.SMTP.From, "SMTP_FROM")

	setString(&c.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&c.Minio.Bucket, "MINIO_BUCKET")
	setString(&c.Minio.PublicURL, "MINIO_PUBLIC_URL")

	setString(&c.Kafka.OrderTopic, "KAFKA_ORDER_TOPIC")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}

	setString(&c.Admin.Name, "ADMIN_NAME")
	setString(&c.Admin.Email, "ADMIN_EMAIL")
	setString(&c.Admin.Password, "ADMIN_PASSWORD")

	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	var errs []error
	errs = append(errs,
		setInt(&c.Database.ConnectRetries, "DB_CONNECT_RETRIES"),
		setDuration(&c.Database.ConnectDelay, "DB_CONNECT_DELAY"),
		setInt(&c.Redis.Database, "REDIS_DB"),
		setDuration(&c.JWT.TTL, "JWT_TTL"),
		setDuration(&c.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT"),
		setBool(&c.SMTP.Enabled, "SMTP_ENABLED"),
	)
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// setDuration 接受 "5s" 或純數字(毫秒)
func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if ms, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(ms) * time.Millisecond
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate 一次回報所有設定錯誤
func (c Config) Validate() error {
	var errs []error
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server port %q is not a number", c.Server.Port))
	}

	switch c.Database.Driver {
	case DriverMongo:
		if c.Database.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	case DriverMySQL, DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_DSN is required for the %s driver", c.Database.Driver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	if c.Database.ConnectRetries < 1 {
		errs = append(errs, errors.New("database connect retries must be at least 1"))
	}
	if c.Database.ConnectDelay < 0 {
		errs = append(errs, errors.New("database connect delay must not be negative"))
	}
	if c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis address is required"))
	}
	if c.JWT.TTL <= 0 {
		errs = append(errs, errors.New("jwt ttl must be positive"))
	}
	if (c.JWT.PrivateKeyPath == "") != (c.JWT.PublicKeyPath == "") {
		errs = append(errs, errors.New("jwt private and public key paths must be set together"))
	}
	if c.SMTP.Enabled && (c.SMTP.Host == "" || c.SMTP.User == "") {
		errs = append(errs, errors.New("smtp host and user are required when smtp is enabled"))
	}
	if c.Minio.Endpoint != "" && (c.Minio.AccessKey == "" || c.Minio.SecretKey == "" || c.Minio.Bucket == "") {
		errs = append(errs, errors.New("minio access key, secret key and bucket are required with an endpoint"))
	}
	if (c.Admin.Email == "") != (c.Admin.Password == "") {
		errs = append(errs, errors.New("admin email and password must be set together"))
	}
	if c.Admin.Password != "" && len(c.Admin.Password) < 8 {
		errs = append(errs, errors.New("admin password must be at least 8 characters"))
	}
	if c.Server.ClientURL != "" && !strings.HasPrefix(c.Server.ClientURL, "http://") && !strings.HasPrefix(c.Server.ClientURL, "https://") {
		errs = append(errs, fmt.Errorf("client url %q must start with http:// or https://", c.Server.ClientURL))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log format %q must be console or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// CORSOrigins 允許的來源：前端網址與本機文件頁
func (c Config) CORSOrigins() []string {
	origins := make([]string, 0, 3)
	if c.Server.ClientURL != "" {
		origins = append(origins, c.Server.ClientURL)
	}
	origins = append(origins,
		"http://localhost:"+c.Server.Port,
		"http://localhost:5006",
	)
	return origins
}

func (c Config) Addr() string {
	return ":" + c.Server.Port
}
