package config

// Default weekly session boundary, venue-timezone-agnostic UTC check.
// Market is considered closed from Saturday 20:00 to Sunday 21:00.
const (
	// DefaultSessionCloseWeekday is the UTC weekday on which the market session closes.
	DefaultSessionCloseWeekday = 6
	// DefaultSessionCloseHour is the UTC hour at which the market session closes.
	DefaultSessionCloseHour = 20
	// DefaultSessionOpenWeekday is the UTC weekday on which the market session opens.
	DefaultSessionOpenWeekday = 0
	// DefaultSessionOpenHour is the UTC hour at which the market session opens.
	DefaultSessionOpenHour = 21
)

// Config contains config values for the app.
// Struct values are loaded from user defined JSON config file.
type Config struct {
	Venue         string         `json:"venue"`
	Instruments   []Instrument   `json:"instruments"`
	Subscriptions []Subscription `json:"subscriptions"`
	Session       *Session       `json:"session"`
	Feed          Feed           `json:"feed"`
	Connection    Connection     `json:"connection"`
	Key           Key            `json:"key"`
	Log           Log            `json:"log"`
}

// Instrument contains config values for one tradeable instrument of the venue.
type Instrument struct {
	Symbol         string `json:"symbol"`
	PricePrecision int    `json:"price_precision"`
}

// Subscription contains config values for one bar aggregation stream
// requested at startup.
type Subscription struct {
	Symbol     string `json:"symbol"`
	Period     int    `json:"period"`
	Resolution string `json:"resolution"`
	PriceSide  string `json:"price_side"`
}

// Session contains config values for the weekly market session boundary.
// If absent from the config file, the default closed window is used.
type Session struct {
	CloseWeekday int `json:"close_weekday"`
	CloseHour    int `json:"close_hour"`
	OpenWeekday  int `json:"open_weekday"`
	OpenHour     int `json:"open_hour"`
}

// Feed contains config values for the quote feed connection.
type Feed struct {
	URL   string `json:"url"`
	Retry Retry  `json:"retry"`
}

// Retry contains config values for the feed retry process.
type Retry struct {
	Number   int `json:"number"`
	GapSec   int `json:"gap_sec"`
	ResetSec int `json:"reset_sec"`
}

// Connection contains config values for different API and storage connections.
type Connection struct {
	WS       WS       `json:"websocket"`
	Terminal Terminal `json:"terminal"`
	MySQL    MySQL    `json:"mysql"`
	ES       ES       `json:"elastic_search"`
}

// WS contains config values for websocket connection.
type WS struct {
	ConnTimeoutSec int `json:"conn_timeout_sec"`
	ReadTimeoutSec int `json:"read_timeout_sec"`
}

// Terminal contains config values for terminal display.
type Terminal struct {
	Enabled       bool `json:"enabled"`
	BarCommitBuf  int  `json:"bar_commit_buffer"`
	TickCommitBuf int  `json:"tick_commit_buffer"`
}

// MySQL contains config values for mysql.
type MySQL struct {
	Enabled            bool   `json:"enabled"`
	User               string `json:"user"`
	Password           string `json:"password"`
	URL                string `json:"URL"`
	Schema             string `json:"schema"`
	ReqTimeoutSec      int    `json:"request_timeout_sec"`
	ConnMaxLifetimeSec int    `json:"conn_max_lifetime_sec"`
	MaxOpenConns       int    `json:"max_open_conns"`
	MaxIdleConns       int    `json:"max_idle_conns"`
	BarCommitBuf       int    `json:"bar_commit_buffer"`
	TickCommitBuf      int    `json:"tick_commit_buffer"`
}

// ES contains config values for elastic search.
type ES struct {
	Enabled             bool     `json:"enabled"`
	Addresses           []string `json:"addresses"`
	Username            string   `json:"username"`
	Password            string   `json:"password"`
	IndexName           string   `json:"index_name"`
	ReqTimeoutSec       int      `json:"request_timeout_sec"`
	MaxIdleConns        int      `json:"max_idle_conns"`
	MaxIdleConnsPerHost int      `json:"max_idle_conns_per_host"`
	BarCommitBuf        int      `json:"bar_commit_buffer"`
	TickCommitBuf       int      `json:"tick_commit_buffer"`
}

// Key contains config values for the storage key namespace.
type Key struct {
	Namespace string `json:"namespace"`
}

// Log contains config values for logging.
type Log struct {
	Level    string `json:"level"`
	FilePath string `json:"file_path"`
}
