// go-xmlsign signs XML documents that carry pre-built XML digital signature
// templates. A template is a Signature element whose DigestValue and
// SignatureValue slots are empty; signing fills the slots in place and writes
// the completed document to stdout, leaving the rest of the document
// untouched.
//
// The tool also verifies previously signed documents and can run as a small
// HTTP signing service.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SUNET/go-xmlsign/pkg/api"
	"github.com/SUNET/go-xmlsign/pkg/config"
	"github.com/SUNET/go-xmlsign/pkg/dsig"
	"github.com/SUNET/go-xmlsign/pkg/logging"
	"github.com/SUNET/go-xmlsign/pkg/pipeline"
)

// Version is set at build time using -ldflags
var Version = "dev"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func usage() {
	prog := os.Args[0]
	fmt.Fprintf(os.Stderr, "\nUsage: %s [options] <command> [arguments]\n", prog)
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  sign <template.xml> [key.pem]  Sign every signature template in the document")
	fmt.Fprintln(os.Stderr, "                                 and write the result to stdout. The key file")
	fmt.Fprintln(os.Stderr, "                                 may be a PEM private key or a PKCS#12 bundle.")
	fmt.Fprintln(os.Stderr, "  verify <signed.xml> <pub.pem>  Verify every signature in a signed document")
	fmt.Fprintln(os.Stderr, "                                 against a PEM public key or certificate.")
	fmt.Fprintln(os.Stderr, "  run <pipeline.yaml>            Run a custom signing pipeline from a YAML file.")
	fmt.Fprintln(os.Stderr, "  serve                          Start the HTTP signing service.")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  --help         Show this help message and exit.")
	fmt.Fprintln(os.Stderr, "  --version      Show version information and exit.")
	fmt.Fprintln(os.Stderr, "  --config       Configuration file (YAML).")
	fmt.Fprintln(os.Stderr, "  --ns           Namespace bindings for the signature query, as a")
	fmt.Fprintln(os.Stderr, "                 whitespace-separated prefix=uri list.")
	fmt.Fprintln(os.Stderr, "  --query        Path expression selecting the signature templates.")
	fmt.Fprintln(os.Stderr, "  --id-attr      Attribute name carrying unique identifiers (default: id)")
	fmt.Fprintln(os.Stderr, "  --p12-pass     Password for a PKCS#12 key file.")
	fmt.Fprintln(os.Stderr, "  --pkcs11       PKCS#11 URI of a hardware-backed signing key.")
	fmt.Fprintln(os.Stderr, "  --key-label    PKCS#11 key label (with --pkcs11).")
	fmt.Fprintln(os.Stderr, "  --cert-label   PKCS#11 certificate label (with --pkcs11).")
	fmt.Fprintln(os.Stderr, "  --log-level    Log level: debug, info, warn, error (default: info)")
	fmt.Fprintln(os.Stderr, "  --log-format   Log format: text or json (default: text)")
	fmt.Fprintln(os.Stderr, "  --log-output   Log output: stderr, stdout or a file path (default: stderr)")
	fmt.Fprintln(os.Stderr, "  --host         HTTP service hostname (default: 127.0.0.1)")
	fmt.Fprintln(os.Stderr, "  --port         HTTP service port (default: 6002)")
	fmt.Fprintln(os.Stderr, "")
}

func main() {
	showHelp := flag.Bool("help", false, "Show help message")
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Configuration file (YAML)")
	nsBindings := flag.String("ns", "", "Namespace bindings (prefix=uri list)")
	queryExpr := flag.String("query", "", "Path expression selecting signature templates")
	idAttr := flag.String("id-attr", "", "Attribute name carrying unique identifiers")
	p12Pass := flag.String("p12-pass", "", "Password for a PKCS#12 key file")
	pkcs11URI := flag.String("pkcs11", "", "PKCS#11 URI of the signing key")
	keyLabel := flag.String("key-label", "", "PKCS#11 key label")
	certLabel := flag.String("cert-label", "", "PKCS#11 certificate label")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "", "Log format: text or json")
	logOutput := flag.String("log-output", "", "Log output: stderr, stdout or a file path")
	host := flag.String("host", "", "HTTP service hostname")
	port := flag.String("port", "", "HTTP service port")
	flag.Usage = usage
	flag.Parse()

	if *showHelp {
		usage()
		os.Exit(exitOK)
	}
	if *showVersion {
		fmt.Println("Version:", Version)
		os.Exit(exitOK)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(exitUsage)
	}
	if *nsBindings != "" {
		cfg.Signing.NamespaceBindings = *nsBindings
	}
	if *queryExpr != "" {
		cfg.Signing.QueryExpression = *queryExpr
	}
	if *idAttr != "" {
		cfg.Signing.IDAttribute = *idAttr
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *logOutput != "" {
		cfg.Logging.Output = *logOutput
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(exitUsage)
	}

	logger, err := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(exitUsage)
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: missing command.")
		usage()
		os.Exit(exitUsage)
	}

	switch args[0] {
	case "sign":
		runSign(args[1:], cfg, logger, *p12Pass, *pkcs11URI, *keyLabel, *certLabel)
	case "verify":
		runVerify(args[1:], cfg, logger)
	case "run":
		runPipeline(args[1:], logger)
	case "serve":
		runServe(cfg, logger, *p12Pass, *pkcs11URI, *keyLabel, *certLabel)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q.\n", args[0])
		usage()
		os.Exit(exitUsage)
	}
}

// loadKeyMaterial resolves the signing key from the available sources: a
// PKCS#11 token when a URI is given, otherwise a PKCS#12 bundle or a PEM
// file depending on the file extension. An empty result with a nil error
// means the key is loaded later by the sign pipeline step itself.
func loadKeyMaterial(keyPath, p12Pass, pkcs11URI, keyLabel, certLabel string) (*dsig.KeyMaterial, error) {
	if pkcs11URI != "" {
		source, err := dsig.NewPKCS11KeySourceFromURI(pkcs11URI, keyLabel, certLabel)
		if err != nil {
			return nil, err
		}
		defer source.Close()
		return source.Load()
	}

	if keyPath == "" {
		return nil, nil
	}
	lower := strings.ToLower(keyPath)
	if strings.HasSuffix(lower, ".p12") || strings.HasSuffix(lower, ".pfx") {
		return dsig.LoadKeyPKCS12(keyPath, p12Pass)
	}
	return nil, nil
}

func runSign(args []string, cfg *config.Config, logger logging.Logger, p12Pass, pkcs11URI, keyLabel, certLabel string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: sign requires a template file argument.")
		usage()
		os.Exit(exitUsage)
	}
	templatePath := args[0]
	keyPath := ""
	if len(args) > 1 {
		keyPath = args[1]
	}
	if keyPath == "" && pkcs11URI == "" {
		fmt.Fprintln(os.Stderr, "Error: sign requires a key file or a --pkcs11 URI.")
		usage()
		os.Exit(exitUsage)
	}

	ctx := pipeline.NewContext()
	key, err := loadKeyMaterial(keyPath, p12Pass, pkcs11URI, keyLabel, certLabel)
	if err != nil {
		logger.Error("Failed to load signing key", logging.F("error", err))
		os.Exit(exitError)
	}
	ctx.Key = key

	pl := pipeline.New(pipeline.DefaultPipes(templatePath, keyPath, cfg.Signing), logger)
	if _, err := pl.Process(ctx); err != nil {
		logger.Error("Signing failed", logging.F("template", templatePath), logging.F("error", err))
		os.Exit(exitError)
	}
}

func runVerify(args []string, cfg *config.Config, logger logging.Logger) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Error: verify requires a signed document and a public key file.")
		usage()
		os.Exit(exitUsage)
	}
	docPath, pubPath := args[0], args[1]

	pub, err := dsig.LoadPublicKeyPEM(pubPath)
	if err != nil {
		logger.Error("Failed to load public key", logging.F("file", pubPath), logging.F("error", err))
		os.Exit(exitError)
	}

	// The registry is rebuilt the same way the sign command builds it, so
	// that identifier references resolve to the same nodes.
	pl := pipeline.New([]pipeline.Pipe{
		{MethodName: "load", MethodArguments: []string{docPath}},
		{MethodName: "register-ids", MethodArguments: []string{
			cfg.Signing.IDAttribute,
			cfg.Signing.CertificatesNamespace,
			cfg.Signing.CertificatesContainer,
			cfg.Signing.CertificateNode,
		}},
	}, logger)
	ctx, err := pl.Process(pipeline.NewContext())
	if err != nil {
		logger.Error("Failed to prepare document", logging.F("file", docPath), logging.F("error", err))
		os.Exit(exitError)
	}

	if err := dsig.VerifyTemplates(ctx.Doc, pub, ctx.Registry); err != nil {
		logger.Error("Verification failed", logging.F("file", docPath), logging.F("error", err))
		os.Exit(exitError)
	}
	logger.Info("Verification succeeded", logging.F("file", docPath))
}

func runPipeline(args []string, logger logging.Logger) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: run requires a pipeline YAML file argument.")
		usage()
		os.Exit(exitUsage)
	}

	pl, err := pipeline.NewPipeline(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load pipeline: %v\n", err)
		os.Exit(exitUsage)
	}
	if pl.Logger == nil {
		pl = pl.WithLogger(logger)
	}
	if _, err := pl.Process(pipeline.NewContext()); err != nil {
		pl.Logger.Error("Pipeline failed", logging.F("file", args[0]), logging.F("error", err))
		os.Exit(exitError)
	}
}

func runServe(cfg *config.Config, logger logging.Logger, p12Pass, pkcs11URI, keyLabel, certLabel string) {
	serverCtx := api.NewServerContext(logger)
	serverCtx.Signing = cfg.Signing
	serverCtx.Metrics = api.NewMetrics()
	serverCtx.RateLimiter = api.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitRPS)

	key, err := loadKeyMaterial(cfg.Server.KeyFile, p12Pass, pkcs11URI, keyLabel, certLabel)
	if err != nil {
		logger.Error("Failed to load server signing key", logging.F("error", err))
		os.Exit(exitError)
	}
	if key == nil && cfg.Server.KeyFile != "" {
		key, err = dsig.LoadKeyPEM(cfg.Server.KeyFile)
		if err != nil {
			logger.Error("Failed to load server signing key",
				logging.F("file", cfg.Server.KeyFile), logging.F("error", err))
			os.Exit(exitError)
		}
	}
	if key == nil {
		logger.Warn("No signing key configured, the service will refuse signing requests")
	}
	serverCtx.Key = key

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(api.RequestIDMiddleware())
	r.Use(serverCtx.Metrics.MetricsMiddleware())
	r.Use(serverCtx.RateLimiter.Middleware())

	api.RegisterAPIRoutes(r, serverCtx)
	api.RegisterHealthEndpoints(r, serverCtx)
	r.GET("/metrics", gin.WrapH(serverCtx.Metrics.Handler()))

	listenAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Signing service listening", logging.F("addr", listenAddr))
	if err := r.Run(listenAddr); err != nil && !errors.Is(err, os.ErrClosed) {
		logger.Error("Signing service error", logging.F("error", err))
		os.Exit(exitError)
	}
}
