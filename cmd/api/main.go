package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"github.com/civicgrid/veridoc/internal/ai"
	"github.com/civicgrid/veridoc/internal/auth"
	"github.com/civicgrid/veridoc/internal/chunker"
	"github.com/civicgrid/veridoc/internal/config"
	"github.com/civicgrid/veridoc/internal/docstore"
	"github.com/civicgrid/veridoc/internal/factcheck"
	"github.com/civicgrid/veridoc/internal/index"
	"github.com/civicgrid/veridoc/internal/indexer"
	"github.com/civicgrid/veridoc/internal/retrieval"
	"github.com/civicgrid/veridoc/internal/translate"
	"github.com/civicgrid/veridoc/pkg/models"
)

type factCheckRequest struct {
	Claim    string `json:"claim"`
	Language string `json:"language,omitempty"`
}

type askRequest struct {
	Question   string `json:"question"`
	DocumentID string `json:"document_id,omitempty"`
	Language   string `json:"language,omitempty"`
}

type extractClaimsRequest struct {
	Text string `json:"text"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func main() {
	fs := pflag.NewFlagSet("veridoc-api", pflag.ExitOnError)
	mintSubject := fs.String("mint-token", "", "Print a signed bearer token for the given subject and exit")
	mintRole := fs.String("mint-role", "editor", "Role claim for --mint-token")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("providers", cfg.Providers).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting veridoc api")

	auth.InitializeAuth(cfg.Auth.JwtSecret, cfg.Auth.Enabled)

	if *mintSubject != "" {
		token, err := auth.GenerateJWT(&auth.User{Subject: *mintSubject, Role: *mintRole})
		if err != nil {
			log.Fatalf("Failed to mint token: %v", err)
		}
		fmt.Println(token)
		return
	}

	router := ai.BuildChain(cfg.ChainSettings(), logger)
	dim := router.Dim()
	if cfg.Dim > 0 {
		dim = cfg.Dim
	}
	logger.Info().Str("provider", router.Name()).Int("embedding_dim", dim).Msg("provider chain initialized")

	ctx := context.Background()

	var (
		idx  index.Index
		docs docstore.Store
	)
	if cfg.Database != "" {
		pg, err := index.NewPGStore(ctx, cfg.Database, dim)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pg.Close()
		if err := pg.Create(ctx); err != nil {
			log.Fatalf("Failed to migrate evidence index: %v", err)
		}
		pgDocs := docstore.NewPG(pg.Pool())
		if err := pgDocs.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate document store: %v", err)
		}
		idx, docs = pg, pgDocs
	} else {
		logger.Warn().Msg("no database configured, using in-memory stores")
		idx, docs = index.NewMemoryStore(dim), docstore.NewMemory()
	}

	translator := translate.New(cfg.TranslatorEndpoint, cfg.TranslatorKey, cfg.TranslatorRegion)
	retriever := retrieval.New(idx, docs, router)
	checker := factcheck.NewChecker(retriever, router, translator)
	engine := factcheck.NewEngine(retriever, docs, router, translator)
	ingestor := indexer.New(idx, docs, router, chunker.New(cfg.ChunkSize, cfg.ChunkOverlap), cfg.DocumentsDir)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	mux.HandleFunc("/auth/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]bool{"enabled": auth.IsAuthEnabled()})
	})

	mux.HandleFunc("/api/fact-check", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req factCheckRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		start := time.Now()
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()
		res := checker.CheckClaim(ctx, req.Claim, req.Language)
		hlog.FromRequest(r).Info().Str("verdict", string(res.Verdict)).Dur("dur", time.Since(start)).Msg("fact-check served")
		writeJSON(w, 200, res)
	})

	mux.HandleFunc("/api/ask", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
		defer cancel()
		writeJSON(w, 200, engine.Ask(ctx, req.Question, req.DocumentID, req.Language))
	})

	mux.HandleFunc("/api/extract-claims", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req extractClaimsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
		defer cancel()
		claims := checker.ExtractClaims(ctx, req.Text)
		if claims == nil {
			claims = []string{}
		}
		writeJSON(w, 200, map[string][]string{"claims": claims})
	})

	mux.HandleFunc("/api/documents", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			list, err := docs.List(ctx, r.URL.Query().Get("category"))
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			// full text is heavy; listings carry metadata only
			for i := range list {
				list[i].FullText = ""
			}
			writeJSON(w, 200, list)
		case http.MethodPost:
			auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
				var doc models.Document
				if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}
				if doc.ID == "" || strings.TrimSpace(doc.FullText) == "" {
					http.Error(w, "id and full_text are required", http.StatusBadRequest)
					return
				}
				ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
				defer cancel()
				stored, err := ingestor.IngestDocument(ctx, doc, nil)
				if err != nil {
					http.Error(w, err.Error(), 500)
					return
				}
				ev := hlog.FromRequest(r).Info().Str("document_id", stored.ID)
				if user := auth.GetUserFromContext(r); user != nil {
					ev = ev.Str("subject", user.Subject)
				}
				ev.Msg("document ingested")
				stored.FullText = ""
				writeJSON(w, http.StatusCreated, stored)
			})(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/documents/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/documents/"), "/")
		parts := strings.SplitN(rest, "/", 2)
		id := parts[0]
		if id == "" {
			http.NotFound(w, r)
			return
		}
		sub := ""
		if len(parts) == 2 {
			sub = parts[1]
		}

		switch {
		case sub == "" && r.Method == http.MethodGet:
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			doc, found, err := docs.Get(ctx, id)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			if !found {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, 200, doc)

		case sub == "" && r.Method == http.MethodDelete:
			auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
				ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
				defer cancel()
				if _, err := idx.DeleteDocument(ctx, id); err != nil {
					http.Error(w, err.Error(), 500)
					return
				}
				found, err := docs.Delete(ctx, id)
				if err != nil {
					http.Error(w, err.Error(), 500)
					return
				}
				if !found {
					http.NotFound(w, r)
					return
				}
				ev := hlog.FromRequest(r).Info().Str("document_id", id)
				if user := auth.GetUserFromContext(r); user != nil {
					ev = ev.Str("subject", user.Subject)
				}
				ev.Msg("document deleted")
				w.WriteHeader(http.StatusNoContent)
			})(w, r)

		case sub == "summary" && r.Method == http.MethodGet:
			ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
			defer cancel()
			doc, found, err := docs.Get(ctx, id)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			if !found {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, 200, engine.SummarizeDocument(ctx, doc, r.URL.Query().Get("language")))

		case sub == "timeline" && r.Method == http.MethodGet:
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
			defer cancel()
			doc, found, err := docs.Get(ctx, id)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			if !found {
				http.NotFound(w, r)
				return
			}
			var priorText string
			if prior := r.URL.Query().Get("prior"); prior != "" {
				if pdoc, ok, err := docs.Get(ctx, prior); err == nil && ok {
					priorText = pdoc.FullText
				}
			}
			writeJSON(w, 200, engine.Timeline(ctx, doc, priorText, r.URL.Query().Get("language")))

		case sub == "ask" && r.Method == http.MethodPost:
			var req askRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
			defer cancel()
			writeJSON(w, 200, engine.Ask(ctx, req.Question, id, req.Language))

		default:
			http.NotFound(w, r)
		}
	})

	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		if q == "" {
			http.Error(w, "missing query parameter q", http.StatusBadRequest)
			return
		}
		k := 5
		if v := r.URL.Query().Get("k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				k = n
			}
		}
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		res := retriever.Retrieve(ctx, retrieval.Request{
			Query:      q,
			DocumentID: r.URL.Query().Get("document_id"),
			TopK:       k,
		})
		if res == nil {
			res = []models.RetrievedEvidence{}
		}
		writeJSON(w, 200, res)
	})

	handler := hlog.NewHandler(logger)(
		hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
		})(mux),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}
