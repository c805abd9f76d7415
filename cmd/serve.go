package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reputato/internal/analyzer"
	"github.com/sells-group/reputato/internal/model"
)

var servePort int

// companyAnalyzer is the slice of the analyzer the HTTP layer needs.
type companyAnalyzer interface {
	Analyze(ctx context.Context, companyName string) (*model.CompanyVerdict, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		// The request budget covers both phases plus synthesis parsing slack.
		requestTimeout := time.Duration(cfg.Gather.DeadlineSecs+cfg.Synthesis.DeadlineSecs+30) * time.Second

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Analyzer, cfg.Server.AllowedOrigins, requestTimeout),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(a companyAnalyzer, allowedOrigins []string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/", handleIndex)
	r.Get("/health", handleHealth)
	r.Get("/analyze_company", handleAnalyzeCompany(a))
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalyzeCompany answers GET /analyze_company?name=<company> with the
// final verdict. Partial source failures are absorbed upstream; only a blank
// name, a phase timeout, or a synthesis failure reaches the client as an
// error.
func handleAnalyzeCompany(a companyAnalyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")

		verdict, err := a.Analyze(r.Context(), name)
		if err != nil {
			switch {
			case eris.Is(err, analyzer.ErrEmptyCompanyName):
				writeError(w, http.StatusBadRequest, "name query parameter is required")
			case analyzer.IsTimeout(err):
				zap.L().Warn("analysis timed out", zap.String("company", name), zap.Error(err))
				writeError(w, http.StatusGatewayTimeout, "analysis timed out")
			default:
				zap.L().Error("analysis failed", zap.String("company", name), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "analysis failed")
			}
			return
		}

		writeJSON(w, http.StatusOK, verdict)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// indexHTML is a minimal browser client for manual checks.
const indexHTML = `<!DOCTYPE html>
<html>
<head>
<title>Reputato</title>
<style>
body { font-family: sans-serif; max-width: 40rem; margin: 3rem auto; }
#rating { font-size: 1.8rem; }
#status { color: #777; }
</style>
</head>
<body>
<h1>Reputato</h1>
<p>Honest company reputation checks for job seekers.</p>
<form id="f">
<input id="name" name="name" placeholder="Company name" size="40" required>
<button type="submit">Analyze</button>
</form>
<p id="status"></p>
<div id="result" hidden>
<h3>Summary</h3>
<p id="summary"></p>
<div id="rating"></div>
</div>
<script>
document.getElementById('f').addEventListener('submit', async (e) => {
  e.preventDefault();
  const name = document.getElementById('name').value;
  const status = document.getElementById('status');
  const result = document.getElementById('result');
  result.hidden = true;
  status.textContent = 'Analyzing ' + name + '... this can take a few minutes.';
  try {
    const resp = await fetch('/analyze_company?name=' + encodeURIComponent(name));
    const data = await resp.json();
    if (!resp.ok) { status.textContent = data.error || 'request failed'; return; }
    status.textContent = '';
    document.getElementById('summary').textContent = data.summary;
    document.getElementById('rating').textContent =
      '★'.repeat(data.rating) + '☆'.repeat(5 - data.rating);
    result.hidden = false;
  } catch (err) {
    status.textContent = 'request failed: ' + err;
  }
});
</script>
</body>
</html>
`

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
