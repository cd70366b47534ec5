package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	environmentVariableHTTPPort         = "HTTP_PORT"
	environmentVariableHTTPSPort        = "HTTPS_PORT"
	environmentVariablePort             = "PORT"
	environmentVariableDatabaseURL      = "DATABASE_URL"
	environmentVariableJWTKey           = "JWT_KEY"
	environmentVariableDebug            = "DEBUG"
	environmentVariableACMEHosts        = "ACME_HOSTS"
	environmentVariableACMECacheDir     = "ACME_CACHE_DIR"
	environmentVariableTLSCertFile      = "TLS_CERT_FILE"
	environmentVariableTLSKeyFile       = "TLS_KEY_FILE"
	environmentVariableMaxSockets       = "MAX_SOCKETS"
	environmentVariableBotFillDelay     = "BOT_FILL_DELAY"
	environmentVariableBotDelay         = "BOT_DELAY"
	environmentVariableTurnTimeout      = "TURN_TIMEOUT"
	environmentVariableTimeoutPolicy    = "TIMEOUT_POLICY"
	environmentVariableSocketReadWait   = "SOCKET_READ_WAIT"
	environmentVariableSocketIdlePeriod = "SOCKET_IDLE_PERIOD"
)

// mainFlags are the configuration options which can be easily configured at run startup for different environments.
type mainFlags struct {
	httpPort         int
	httpsPort        int
	databaseURL      string
	jwtKey           string
	debug            bool
	acmeHosts        string
	acmeCacheDir     string
	tlsCertFile      string
	tlsKeyFile       string
	maxSockets       int
	botFillDelay     time.Duration
	botDelay         time.Duration
	turnTimeout      time.Duration
	timeoutPolicy    string
	socketReadWait   time.Duration
	socketIdlePeriod time.Duration
}

const (
	defaultHTTPPort         = 8000
	defaultHTTPSPort        = 8443
	defaultDatabaseURL      = "memory://"
	defaultACMECacheDir     = "acme-cache"
	defaultMaxSockets       = 256
	defaultBotFillDelay     = 30 * time.Second
	defaultBotDelay         = time.Second
	defaultTurnTimeout      = 30 * time.Second
	defaultTimeoutPolicy    = autoPlayTimeoutPolicy
	defaultSocketReadWait   = 60 * time.Second
	defaultSocketIdlePeriod = 15 * time.Minute
)

// usage prints how to run the server to the flagset's output.
func usage(fs *flag.FlagSet) {
	envVars := []string{
		environmentVariableHTTPPort,
		environmentVariableHTTPSPort,
		environmentVariablePort,
		environmentVariableDatabaseURL,
		environmentVariableJWTKey,
		environmentVariableDebug,
		environmentVariableACMEHosts,
		environmentVariableACMECacheDir,
		environmentVariableTLSCertFile,
		environmentVariableTLSKeyFile,
		environmentVariableMaxSockets,
		environmentVariableBotFillDelay,
		environmentVariableBotDelay,
		environmentVariableTurnTimeout,
		environmentVariableTimeoutPolicy,
		environmentVariableSocketReadWait,
		environmentVariableSocketIdlePeriod,
	}
	fmt.Fprintf(fs.Output(), "Runs the server\n")
	fmt.Fprintf(fs.Output(), "Reads environment variables when possible: [%s]\n", strings.Join(envVars, ","))
	fmt.Fprintf(fs.Output(), "Usage of %s:\n", fs.Name())
	fs.PrintDefaults()
}

// newFlagSet creates a flagSet that populates the specified mainFlags.
func (m *mainFlags) newFlagSet(osLookupEnvFunc func(string) (string, bool), portOverride *int) *flag.FlagSet {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.Usage = func() {
		usage(fs) // [lazy evaluation]
	}
	envValue := func(key, defaultValue string) string {
		if envValue, ok := osLookupEnvFunc(key); ok {
			return envValue
		}
		return defaultValue
	}
	envValueInt := func(key string, defaultValue int) int {
		v1 := envValue(key, "")
		v2, err := strconv.Atoi(v1)
		if err != nil {
			return defaultValue
		}
		return v2
	}
	envValueDuration := func(key string, defaultValue time.Duration) time.Duration {
		v1 := envValue(key, "")
		v2, err := time.ParseDuration(v1)
		if err != nil {
			return defaultValue
		}
		return v2
	}
	envPresent := func(key string) bool {
		_, ok := osLookupEnvFunc(key)
		return ok
	}
	fs.IntVar(&m.httpPort, "http-port", envValueInt(environmentVariableHTTPPort, defaultHTTPPort), "The TCP port for server http requests.  All traffic is redirected to the https port when tls is used.")
	fs.IntVar(&m.httpsPort, "https-port", envValueInt(environmentVariableHTTPSPort, defaultHTTPSPort), "The TCP port for server https requests.  Only used with tls.")
	fs.IntVar(portOverride, "port", envValueInt(environmentVariablePort, 0), "The single port to run the server on.  Overrides the -http-port flag.")
	fs.StringVar(&m.databaseURL, "database-url", envValue(environmentVariableDatabaseURL, defaultDatabaseURL), "The url of the database.  The scheme selects the database: memory, postgres, sqlite, mongodb, or firestore (firestore://<project-id>).")
	fs.StringVar(&m.jwtKey, "jwt-key", envValue(environmentVariableJWTKey, ""), "The key shared with the login service to verify player tokens.  A random key is used if empty.")
	fs.BoolVar(&m.debug, "debug", envPresent(environmentVariableDebug), "Logs requests and message types when messages are passed between components.")
	fs.StringVar(&m.acmeHosts, "acme-hosts", envValue(environmentVariableACMEHosts, ""), "The comma-separated host names to get certificates for using ACME HTTP-01 challenges.")
	fs.StringVar(&m.acmeCacheDir, "acme-cache-dir", envValue(environmentVariableACMECacheDir, defaultACMECacheDir), "The folder to save certificates from ACME in.")
	fs.StringVar(&m.tlsCertFile, "tls-cert-file", envValue(environmentVariableTLSCertFile, ""), "The absolute path of the certificate file to use for TLS.")
	fs.StringVar(&m.tlsKeyFile, "tls-key-file", envValue(environmentVariableTLSKeyFile, ""), "The absolute path of the key file to use for TLS.")
	fs.IntVar(&m.maxSockets, "max-sockets", envValueInt(environmentVariableMaxSockets, defaultMaxSockets), "The maximum number of open websockets.")
	fs.DurationVar(&m.botFillDelay, "bot-fill-delay", envValueDuration(environmentVariableBotFillDelay, defaultBotFillDelay), "How long a waiting room waits for players before bots take its free seats.  Zero disables bots.")
	fs.DurationVar(&m.botDelay, "bot-delay", envValueDuration(environmentVariableBotDelay, defaultBotDelay), "How long bots wait before taking their turns.")
	fs.DurationVar(&m.turnTimeout, "turn-timeout", envValueDuration(environmentVariableTurnTimeout, defaultTurnTimeout), "How long a player can take to act before the timeout policy acts for them.  Zero disables timeouts.")
	fs.StringVar(&m.timeoutPolicy, "timeout-policy", envValue(environmentVariableTimeoutPolicy, defaultTimeoutPolicy), "What happens when a player times out: auto (play the move a bot would) or skip (pass the turn).")
	fs.DurationVar(&m.socketReadWait, "socket-read-wait", envValueDuration(environmentVariableSocketReadWait, defaultSocketReadWait), "How long a websocket can go without reading a message or pong before it is closed.")
	fs.DurationVar(&m.socketIdlePeriod, "socket-idle-period", envValueDuration(environmentVariableSocketIdlePeriod, defaultSocketIdlePeriod), "How long a websocket can go without game messages before it is closed.")
	return fs
}

// newMainFlags creates a new, populated mainFlags structure.
// Fields are populated from command line arguments.
// If fields are not specified on the command line, environment variable values are used before defaulting to other defaults.
func newMainFlags(osArgs []string, osLookupEnvFunc func(string) (string, bool)) (*mainFlags, error) {
	if len(osArgs) == 0 {
		osArgs = []string{""}
	}
	programArgs := osArgs[1:]
	var m mainFlags
	var portOverride int
	fs := m.newFlagSet(osLookupEnvFunc, &portOverride)
	if err := fs.Parse(programArgs); err != nil {
		return nil, err
	}
	if portOverride != 0 {
		m.httpPort = portOverride
	}
	return &m, nil
}
