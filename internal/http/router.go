package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/participadf/ouvidoria/internal/capture"
	"github.com/participadf/ouvidoria/internal/config"
	"github.com/participadf/ouvidoria/internal/dashboard"
	httpmiddleware "github.com/participadf/ouvidoria/internal/http/middleware"
	"github.com/participadf/ouvidoria/internal/monitor"
	"github.com/participadf/ouvidoria/internal/ouvidoria"
	"github.com/participadf/ouvidoria/internal/service"
	"github.com/participadf/ouvidoria/internal/settings"
)

// Deps reúne os serviços montados em cmd/api. Pool e Redis são opcionais.
type Deps struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Auth      *service.AuthService
	Ouvidoria *ouvidoria.Service
	Dashboard *dashboard.Service
	Settings  *settings.Store
	Sessions  *capture.Sessions
	Monitor   *monitor.Service
	// SettingsRepo grava cada alteração de configuração; nil mantém só em memória.
	SettingsRepo *settings.Repository
	// UploadDir é servido em cfg.Storage.PublicPrefix quando o armazenamento é local.
	UploadDir string
}

type Handler struct {
	cfg           *config.Config
	pool          *pgxpool.Pool
	redis         *redis.Client
	authService   *service.AuthService
	manifestacoes *ouvidoria.Service
	dashboard     *dashboard.Service
	settings      *settings.Store
	settingsRepo  *settings.Repository
	sessions      *capture.Sessions
	monitor       *monitor.Service
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	loginLimiter  *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter devolve roteador configurado.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	devCookies := cfg.DevCookies
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	h := &Handler{
		cfg:           cfg,
		pool:          deps.Pool,
		redis:         deps.Redis,
		authService:   deps.Auth,
		manifestacoes: deps.Ouvidoria,
		dashboard:     deps.Dashboard,
		settings:      deps.Settings,
		settingsRepo:  deps.SettingsRepo,
		sessions:      deps.Sessions,
		monitor:       deps.Monitor,
		publicLimiter: httpmiddleware.NewRateLimiter(cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter(cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		// 5 tentativas seguidas, depois uma a cada 12s por identificador
		loginLimiter: httpmiddleware.NewRateLimiter(1.0/12, 5),
		devCookies:   devCookies,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)

		public.Route("/api", func(api chi.Router) {
			api.With(httpmiddleware.OptionalAuth(h.authService.JWT())).Post("/nova-manifestacao", h.NovaManifestacao)
			api.Get("/manifestacoes/{protocolo}", h.ConsultarProtocolo)
			api.Get("/portal", h.Portal)

			api.Route("/gravacoes", func(g chi.Router) {
				g.Post("/", h.IniciarGravacao)
				g.Post("/{id}/chunks", h.EnviarTrecho)
				g.Post("/{id}/finalizar", h.FinalizarGravacao)
				g.Delete("/{id}", h.CancelarGravacao)
			})
		})

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Login)
			auth.Post("/cadastro", h.Cadastro)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})

		if deps.UploadDir != "" {
			prefix := strings.TrimRight(cfg.Storage.PublicPrefix, "/")
			public.Handle(prefix+"/*", http.StripPrefix(prefix, uploadsHandler(deps.UploadDir)))
		}
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(h.authService.JWT()))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))

		private.Get("/me", h.Me)
		private.With(httpmiddleware.RequireRoles(service.RoleCitizen)).Get("/me/manifestacoes", h.MinhasManifestacoes)

		private.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.RequireRoles(service.RoleAdmin, service.RoleAttendant))

			admin.Get("/resumo", h.AdminResumo)
			admin.Get("/manifestacoes", h.AdminListar)
			admin.Get("/manifestacoes/{protocolo}", h.AdminDetalhe)
			admin.Patch("/manifestacoes/{protocolo}/status", h.AdminStatus)
			admin.Post("/manifestacoes/{protocolo}/resposta", h.AdminResponder)
			admin.Get("/sla", h.AdminSLA)

			admin.Group(func(owner chi.Router) {
				owner.Use(httpmiddleware.RequireRoles(service.RoleAdmin))
				owner.Post("/sla/verificar", h.AdminSLAVerificar)
				owner.Route("/usuarios", func(u chi.Router) {
					u.Get("/", h.ListarAtendentes)
					u.Post("/", h.CriarAtendente)
					u.Delete("/{username}", h.RemoverUsuario)
				})
				owner.Route("/cidadaos", func(c chi.Router) {
					c.Get("/", h.ListarCidadaos)
					c.Post("/", h.CriarCidadao)
				})
				owner.Get("/configuracoes", h.GetConfiguracoes)
				owner.Put("/configuracoes", h.UpdateConfiguracoes)
			})
		})
	})

	return r
}

// Health responde status simples.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready valida conexões com Postgres e Redis quando configurados.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	var dbErr, redisErr error
	if h.pool != nil {
		dbErr = h.pool.Ping(ctx)
	}
	if h.redis != nil {
		redisErr = h.redis.Ping(ctx).Err()
	}

	if dbErr != nil || redisErr != nil {
		WriteError(w, http.StatusServiceUnavailable, CodeInternal, "dependências indisponíveis", map[string]any{
			"db":    errorString(dbErr),
			"redis": errorString(redisErr),
		})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"ready": true,
		"db":    h.pool != nil,
		"redis": h.redis != nil,
	})
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// uploadsHandler serve os anexos gravados em disco sem listar diretórios.
func uploadsHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			WriteError(w, http.StatusNotFound, CodeNotFound, "arquivo não encontrado", nil)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		files.ServeHTTP(w, r)
	})
}
