package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Application configuration
	Port         string
	WorkerCount  int
	APIAccessKey string

	// Eventim feed configuration
	EventimURL      string
	EventimUsername string
	EventimPassword string
	CacheDir        string

	// Source configuration overrides
	SourcesDir string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
