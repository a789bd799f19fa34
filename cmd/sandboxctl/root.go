package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cryguy/sandbox"
	"github.com/cryguy/sandbox/internal/capability"
	"github.com/cryguy/sandbox/internal/chain"
	"github.com/cryguy/sandbox/internal/config"
	"github.com/cryguy/sandbox/internal/hardening"
	"github.com/cryguy/sandbox/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// options are the flags shared by the commands that build a sandbox. Flags
// left unset keep the value from the environment configuration.
type options struct {
	timeout    int
	gasLimit   uint64
	bootstrap  string
	contract   string
	dsn        string
	memoryMB   int
	chainPath  string
	modules    []string
	logLevel   string
	logDev     bool
	seccomp    bool
	metricsOut string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "sandboxctl",
		Short: "Run contract programs in a JavaScript sandbox",
		Long: `Run contract programs in a JavaScript sandbox.

Configuration is read from SANDBOX_* environment variables; flags override it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.IntVarP(&opts.timeout, "timeout", "t", 0, "execution deadline in milliseconds")
	f.Uint64VarP(&opts.gasLimit, "gas-limit", "g", 0, "gas limit, 0 for unlimited")
	f.StringVarP(&opts.bootstrap, "bootstrap", "b", "", "directory holding the bootstrap programs and modules/")
	f.StringVarP(&opts.contract, "contract", "c", "", "contract name scoping storage keys")
	f.StringVar(&opts.dsn, "storage", "", "storage DSN, a SQLite file path or :memory:")
	f.IntVar(&opts.memoryMB, "memory-limit", 0, "engine heap limit in MiB")
	f.StringVar(&opts.chainPath, "chain", "", "YAML fixture describing block, transaction and accounts")
	f.StringArrayVarP(&opts.modules, "module", "m", nil, "register a module as name=path")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.BoolVar(&opts.logDev, "log-dev", false, "human readable logs")
	f.BoolVar(&opts.seccomp, "seccomp", false, "deny process creation and sockets before running")
	f.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(newRunCmd(opts), newCheckCmd(opts), newVersionCmd())
	return root
}

// config merges the changed flags into the environment configuration.
func (o *options) config(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.LoadOrDefault()
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Sandbox.TimeoutMS = o.timeout
	}
	if flags.Changed("gas-limit") {
		cfg.Sandbox.GasLimit = o.gasLimit
	}
	if flags.Changed("bootstrap") {
		cfg.Sandbox.BootstrapPath = o.bootstrap
	}
	if flags.Changed("contract") {
		cfg.Sandbox.Contract = o.contract
	}
	if flags.Changed("storage") {
		cfg.Storage.DSN = o.dsn
	}
	if flags.Changed("memory-limit") {
		cfg.Engine.MemoryLimitMB = o.memoryMB
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("log-dev") {
		cfg.Logging.Development = o.logDev
	}
	if err := cfg.Validate(); err != nil {
		return nil, &exitError{Code: 2, Message: err.Error()}
	}
	return cfg, nil
}

// session is a sandbox opened from the command line together with what
// must be flushed when the command ends.
type session struct {
	*sandbox.Sandbox
	logger     *logging.Logger
	registry   *prometheus.Registry
	metricsOut string
}

func (o *options) open(cmd *cobra.Command) (*session, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, &exitError{Code: 2, Message: fmt.Sprintf("invalid log level: %v", err)}
	}

	deps := sandbox.Deps{Logger: logger.Logger}
	if o.chainPath != "" {
		st, err := chain.LoadFixture(o.chainPath)
		if err != nil {
			return nil, err
		}
		deps.Chain = st
	}
	if len(o.modules) > 0 {
		mods, err := loadModules(o.modules)
		if err != nil {
			return nil, err
		}
		deps.Modules = mods
	}

	sess := &session{logger: logger, metricsOut: o.metricsOut}
	if o.metricsOut != "" {
		sess.registry = prometheus.NewRegistry()
		deps.Registerer = sess.registry
	}

	if o.seccomp {
		if err := hardening.Apply(logger.Logger); err != nil {
			return nil, fmt.Errorf("applying seccomp filter: %w", err)
		}
	}

	s, err := sandbox.Open(cfg, deps)
	if err != nil {
		return nil, err
	}
	sess.Sandbox = s
	logger.Debug("sandbox opened",
		zap.String("backend", sandbox.Backend),
		zap.String("id", s.ID()),
		zap.String("contract", cfg.Sandbox.Contract))
	return sess, nil
}

// close releases the sandbox and writes the metrics file.
func (s *session) close() error {
	s.Release()
	defer func() { _ = s.logger.Sync() }()
	if s.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(s.metricsOut, s.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}

// loadModules reads name=path pairs into an in-memory resolver. Files
// under the bootstrap directory's modules/ still take precedence.
func loadModules(specs []string) (*capability.Modules, error) {
	mods := capability.NewModules()
	for _, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		if !ok || name == "" || path == "" {
			return nil, &exitError{Code: 2, Message: fmt.Sprintf("invalid module %q, want name=path", spec)}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading module %s: %w", name, err)
		}
		if err := mods.Add(name, path, string(data)); err != nil {
			return nil, err
		}
	}
	return mods, nil
}

// readProgram reads the program named by arg; "-" reads stdin.
func readProgram(cmd *cobra.Command, arg string) (string, error) {
	if arg == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("reading program: %w", err)
	}
	return string(data), nil
}
