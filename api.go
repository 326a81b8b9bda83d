package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

// routeSummary is the admin-facing view of one compiled binding
type routeSummary struct {
	Hostname    string `json:"hostname"`
	Upstream    string `json:"upstream"`
	HealthCheck bool   `json:"health_check"`
}

// adminHandler serves the admin listener: config API, route table, liveness
// and metrics. Never exposed through the routed virtual hosts.
func (s *Proxy) adminHandler() http.Handler {
	mux := http.NewServeMux()

	// Enable CORS for all config endpoints
	corsHandler := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			h(w, r)
		}
	}

	// /api/config - Handle GET and PUT requests for configuration
	mux.HandleFunc("/api/config", corsHandler(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cfg := s.Config()
			if cfg == nil {
				http.Error(w, "No configuration available", http.StatusNotFound)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(cfg); err != nil {
				s.logger.Error("Failed to encode config", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "Failed to read request body", http.StatusBadRequest)
				return
			}

			var newConfig Config
			if err := json.Unmarshal(body, &newConfig); err != nil {
				http.Error(w, fmt.Sprintf("Invalid JSON: %s", err.Error()), http.StatusBadRequest)
				return
			}

			// Set defaults
			if err := setConfigDefaults(&newConfig); err != nil {
				http.Error(w, fmt.Sprintf("Failed to set defaults: %v", err), http.StatusInternalServerError)
				return
			}

			// Post-process the configuration
			if err := postProcessParsedConfig(&newConfig); err != nil {
				http.Error(w, fmt.Sprintf("Failed to post-process config: %v", err), http.StatusInternalServerError)
				return
			}

			// Validate the new configuration
			if err := validateParsedConfig(&newConfig); err != nil {
				http.Error(w, fmt.Sprintf("Configuration validation failed: %v", err), http.StatusBadRequest)
				return
			}

			// Swap in the new route table before persisting; a config that
			// cannot compile must not reach disk
			if err := s.applyConfig(&newConfig); err != nil {
				http.Error(w, fmt.Sprintf("Failed to apply config: %v", err), http.StatusBadRequest)
				return
			}

			// Save to file if configFile is set
			if s.configFile != "" {
				yamlData, err := yaml.Marshal(&newConfig)
				if err != nil {
					http.Error(w, "Failed to marshal config to YAML", http.StatusInternalServerError)
					return
				}

				if err := os.WriteFile(s.configFile, yamlData, 0644); err != nil {
					s.logger.Error("Failed to write config file", "error", err, "file", s.configFile)
					http.Error(w, "Failed to save configuration file", http.StatusInternalServerError)
					return
				}
			}

			s.logger.Info("Configuration updated successfully")

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"status": "success", "message": "Configuration updated successfully"})
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	// /api/routes - Read-only view of the active route table
	mux.HandleFunc("/api/routes", corsHandler(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		table := s.routes.Load()
		summaries := make([]routeSummary, 0, len(*table))
		for hostname, rt := range *table {
			summaries = append(summaries, routeSummary{
				Hostname:    hostname,
				Upstream:    rt.binding.Upstream,
				HealthCheck: rt.binding.HealthCheck != nil,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summaries); err != nil {
			s.logger.Error("Failed to encode routes", "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
	}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	mux.Handle("/metrics", DefaultMetrics.Handler)

	return mux
}
