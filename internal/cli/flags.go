package cli

import "time"

// Flags holds all command-line flag values
type Flags struct {
	// Global flags
	CfgFile      string
	APIBase      string
	Timeout      time.Duration
	LogLevel     string
	LogFormat    string
	Theme        string
	WidgetListen string
	StateDir     string
	Locale       string
	NoBrowser    bool

	// window
	AutoRetry bool

	// translate and batch
	From        string
	To          string
	TargetsFile string
	OutputDir   string
	Archive     bool
	NoHistory   bool
	Token       string

	// history
	Limit  int
	Clear  bool
	Export string

	// devserver
	Listen     string
	Engine     string
	Model      string
	Secret     string
	SiteKey    string
	HeaderName string
	PassTTL    time.Duration
	ListModels bool
	NoCache    bool
}

// NewFlags creates a new Flags instance with default values
func NewFlags() *Flags {
	return &Flags{
		Timeout:      30 * time.Second,
		LogLevel:     "warn",
		LogFormat:    "text",
		Theme:        "auto",
		WidgetListen: "127.0.0.1:0",
		StateDir:     DefaultStateDir(),
		Limit:        20,
		Listen:       "127.0.0.1:8080",
		Engine:       "echo",
		PassTTL:      10 * time.Minute,
	}
}
