package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tradebots/internal/broker"
	"tradebots/internal/news"
	"tradebots/internal/risk"
	"tradebots/internal/strategy"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// StrategyAll runs every strategy in one process.
const StrategyAll = "all"

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type MarketMaker struct {
	SpreadPercent float64       `yaml:"spread_percent"`
	OrderSize     float64       `yaml:"order_size"`
	Leverage      int           `yaml:"leverage"`
	NumLevels     int           `yaml:"num_levels"`
	Interval      time.Duration `yaml:"interval"`
}

type Sentiment struct {
	PositionSize float64       `yaml:"position_size"`
	Leverage     int           `yaml:"leverage"`
	Threshold    float64       `yaml:"threshold"`
	Interval     time.Duration `yaml:"interval"`
}

type Random struct {
	MinSize   float64       `yaml:"min_size"`
	MaxSize   float64       `yaml:"max_size"`
	Leverage  int           `yaml:"leverage"`
	Interval  time.Duration `yaml:"interval"`
	JitterMin time.Duration `yaml:"jitter_min"`
	JitterMax time.Duration `yaml:"jitter_max"`
	MinDelay  time.Duration `yaml:"min_delay"`
}

type News struct {
	Provider      string   `yaml:"provider"`
	NewsAPIURL    string   `yaml:"newsapi_url"`
	AlpacaSymbols []string `yaml:"alpaca_symbols"`
	SampleSize    int      `yaml:"sample_size"`

	NewsAPIKey   string `yaml:"-"`
	AlpacaKey    string `yaml:"-"`
	AlpacaSecret string `yaml:"-"`
}

type Config struct {
	APIURL         string        `yaml:"api_url"`
	Strategy       string        `yaml:"strategy"`
	Password       string        `yaml:"-"`
	MaxLeverage    int           `yaml:"max_leverage"`
	StatusEvery    int           `yaml:"status_every"`
	Tape           bool          `yaml:"tape"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	DecisionsPath  string        `yaml:"decisions_path"`
	Log            Log           `yaml:"log"`
	MarketMaker    MarketMaker   `yaml:"market_maker"`
	Sentiment      Sentiment     `yaml:"sentiment"`
	Random         Random        `yaml:"random"`
	News           News          `yaml:"news"`
}

func Defaults() Config {
	return Config{
		APIURL:         broker.DefaultBaseURL,
		Strategy:       string(strategy.KindMarketMaker),
		Password:       "bot_password",
		MaxLeverage:    risk.DefaultMaxLeverage,
		StatusEvery:    20,
		ReconnectDelay: 5 * time.Second,
		Log:            Log{Level: "info"},
		MarketMaker: MarketMaker{
			SpreadPercent: 0.3,
			OrderSize:     3,
			Leverage:      5,
			NumLevels:     5,
			Interval:      3 * time.Second,
		},
		Sentiment: Sentiment{
			PositionSize: 2,
			Leverage:     25,
			Threshold:    0.3,
			Interval:     30 * time.Second,
		},
		Random: Random{
			MinSize:   1,
			MaxSize:   3,
			Leverage:  10,
			Interval:  5 * time.Second,
			JitterMin: -2 * time.Second,
			JitterMax: 3 * time.Second,
			MinDelay:  2 * time.Second,
		},
		News: News{
			Provider:   news.ProviderAuto,
			NewsAPIURL: news.DefaultNewsAPIURL,
			SampleSize: 5,
		},
	}
}

// Load resolves the configuration from built-in defaults, then the YAML file
// named by -config or CONFIG_PATH, then the environment (with .env filling
// gaps), then command-line flags.
func Load(args []string) (Config, error) {
	loadDotEnvIfPresent(".env")

	cfg := Defaults()
	fs := flag.NewFlagSet("bot", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	strategyName := fs.String("strategy", "", "strategy: market-maker, sentiment, random or all")
	apiURL := fs.String("api-url", "", "exchange base URL")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	logPretty := fs.Bool("log-pretty", false, "human readable console logs")
	metricsAddr := fs.String("metrics-addr", "", "address for the /metrics endpoint, empty to disable")
	decisionsPath := fs.String("decisions-path", "", "path to the NDJSON decision journal, empty to disable")
	maxLeverage := fs.Int("max-leverage", 0, "leverage ceiling enforced before submission")
	newsProvider := fs.String("news-provider", "", "news source: auto, newsapi, alpaca or samples")
	tape := fs.Bool("tape", false, "follow the exchange trade stream for fill tracking")
	statusEvery := fs.Int("status-every", 0, "cycles between status reports")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strategy":
			cfg.Strategy = *strategyName
		case "api-url":
			cfg.APIURL = *apiURL
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-pretty":
			cfg.Log.Pretty = *logPretty
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "decisions-path":
			cfg.DecisionsPath = *decisionsPath
		case "max-leverage":
			cfg.MaxLeverage = *maxLeverage
		case "news-provider":
			cfg.News.Provider = *newsProvider
		case "tape":
			cfg.Tape = *tape
		case "status-every":
			cfg.StatusEvery = *statusEvery
		}
	})

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString("API_URL", &cfg.APIURL)
	setString("STRATEGY", &cfg.Strategy)
	setString("BOT_PASSWORD", &cfg.Password)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("METRICS_ADDR", &cfg.MetricsAddr)
	setString("DECISIONS_PATH", &cfg.DecisionsPath)
	setString("NEWS_PROVIDER", &cfg.News.Provider)
	setString("NEWS_API_KEY", &cfg.News.NewsAPIKey)
	setString("APCA_API_KEY_ID", &cfg.News.AlpacaKey)
	setString("APCA_API_SECRET_KEY", &cfg.News.AlpacaSecret)

	if v := os.Getenv("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOG_PRETTY: %w", err)
		}
		cfg.Log.Pretty = pretty
	}
	if v := os.Getenv("MAX_LEVERAGE"); v != "" {
		maxLeverage, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_LEVERAGE: %w", err)
		}
		cfg.MaxLeverage = maxLeverage
	}
	return nil
}

// Strategies expands the configured strategy into the agents to run.
func (c Config) Strategies() ([]strategy.Kind, error) {
	if c.Strategy == StrategyAll {
		return []strategy.Kind{strategy.KindMarketMaker, strategy.KindSentiment, strategy.KindRandom}, nil
	}
	kind, err := strategy.ParseKind(c.Strategy)
	if err != nil {
		return nil, err
	}
	return []strategy.Kind{kind}, nil
}

// LeverageCeiling is the most leverage an agent of this kind may submit: its
// own configured leverage, itself bounded by MaxLeverage in validate.
func (c Config) LeverageCeiling(kind strategy.Kind) int {
	switch kind {
	case strategy.KindMarketMaker:
		return c.MarketMaker.Leverage
	case strategy.KindSentiment:
		return c.Sentiment.Leverage
	case strategy.KindRandom:
		return c.Random.Leverage
	default:
		return c.MaxLeverage
	}
}

func (c Config) StrategyParams() strategy.Params {
	return strategy.Params{
		MarketMaker: strategy.MarketMakerParams(c.MarketMaker),
		Sentiment:   strategy.SentimentParams(c.Sentiment),
		Random:      strategy.RandomParams(c.Random),
	}
}

func (c Config) NewsOptions() news.Options {
	return news.Options{
		Provider:      c.News.Provider,
		NewsAPIKey:    c.News.NewsAPIKey,
		NewsAPIURL:    c.News.NewsAPIURL,
		AlpacaKey:     c.News.AlpacaKey,
		AlpacaSecret:  c.News.AlpacaSecret,
		AlpacaSymbols: c.News.AlpacaSymbols,
		SampleSize:    c.News.SampleSize,
	}
}

func validate(cfg Config) error {
	if cfg.APIURL == "" {
		return errors.New("api-url must be set")
	}
	if _, err := cfg.Strategies(); err != nil {
		return err
	}
	switch cfg.News.Provider {
	case news.ProviderAuto, news.ProviderNewsAPI, news.ProviderAlpaca, news.ProviderSamples:
	default:
		return fmt.Errorf("unknown news provider: %q", cfg.News.Provider)
	}
	if cfg.MaxLeverage < 1 {
		return fmt.Errorf("max-leverage must be >= 1")
	}
	if cfg.StatusEvery <= 0 {
		return fmt.Errorf("status-every must be > 0")
	}

	mm := cfg.MarketMaker
	if mm.SpreadPercent <= 0 {
		return fmt.Errorf("market_maker.spread_percent must be > 0")
	}
	if mm.OrderSize <= 0 {
		return fmt.Errorf("market_maker.order_size must be > 0")
	}
	if mm.NumLevels <= 0 {
		return fmt.Errorf("market_maker.num_levels must be > 0")
	}
	if mm.Interval <= 0 {
		return fmt.Errorf("market_maker.interval must be > 0")
	}
	if err := validateLeverage("market_maker", mm.Leverage, cfg.MaxLeverage); err != nil {
		return err
	}

	s := cfg.Sentiment
	if s.PositionSize <= 0 {
		return fmt.Errorf("sentiment.position_size must be > 0")
	}
	if s.Threshold <= 0 || s.Threshold > 1 {
		return fmt.Errorf("sentiment.threshold must be in (0, 1]")
	}
	if s.Interval <= 0 {
		return fmt.Errorf("sentiment.interval must be > 0")
	}
	if err := validateLeverage("sentiment", s.Leverage, cfg.MaxLeverage); err != nil {
		return err
	}

	r := cfg.Random
	if r.MinSize <= 0 {
		return fmt.Errorf("random.min_size must be > 0")
	}
	if r.MinSize > r.MaxSize {
		return fmt.Errorf("random.min_size must be <= random.max_size")
	}
	if r.Interval <= 0 {
		return fmt.Errorf("random.interval must be > 0")
	}
	if r.JitterMin%time.Second != 0 || r.JitterMax%time.Second != 0 {
		return fmt.Errorf("random.jitter_min and random.jitter_max must be whole seconds")
	}
	if r.JitterMin > r.JitterMax {
		return fmt.Errorf("random.jitter_min must be <= random.jitter_max")
	}
	if r.MinDelay < 0 {
		return fmt.Errorf("random.min_delay must be >= 0")
	}
	if err := validateLeverage("random", r.Leverage, cfg.MaxLeverage); err != nil {
		return err
	}
	return nil
}

func validateLeverage(section string, leverage, ceiling int) error {
	if leverage < 1 || leverage > ceiling {
		return fmt.Errorf("%s.leverage must be in [1, %d]", section, ceiling)
	}
	return nil
}

func loadDotEnvIfPresent(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = loadDotEnv(path)
}

// loadDotEnv never overrides variables already set in the environment.
func loadDotEnv(path string) error {
	return godotenv.Load(path)
}
