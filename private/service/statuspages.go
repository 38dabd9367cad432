// Copyright 2025 Canarygate Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package service provides the http status pages of the canarygate services.
package service

import (
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/canarygate/canarygate/pkg/log"
	"github.com/canarygate/canarygate/pkg/private/serrors"
)

var startTime = time.Now()

// StatusPage is a page on the status http server of the service.
type StatusPage struct {
	// Info is a short description of the page.
	Info string
	// Handler serves the page.
	Handler http.HandlerFunc
}

// StatusPages maps page names to pages.
type StatusPages map[string]StatusPage

// Register registers the pages on the given mux, plus an index page listing
// them.
func (s StatusPages) Register(mux *http.ServeMux, elemID string) error {
	names := make([]string, 0, len(s))
	for name, page := range s {
		if page.Handler == nil {
			return serrors.New("page without handler", "page", name)
		}
		mux.HandleFunc("/"+name, page.Handler)
		names = append(names, name)
	}
	sort.Strings(names)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<!DOCTYPE html><html><body><h1>%s</h1><ul>\n", elemID)
		for _, name := range names {
			fmt.Fprintf(w, `<li><a href="/%s">%s</a>: %s</li>`+"\n",
				name, name, s[name].Info)
		}
		fmt.Fprint(w, "</ul></body></html>\n")
	})
	return nil
}

// NewInfoStatusPage serves basic process information.
func NewInfoStatusPage() StatusPage {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		version := "unknown"
		if info, ok := debug.ReadBuildInfo(); ok {
			version = info.Main.Version
		}
		fmt.Fprintf(w, "version: %s\n", version)
		fmt.Fprintf(w, "pid: %d\n", os.Getpid())
		fmt.Fprintf(w, "uptime: %s\n", time.Since(startTime).Truncate(time.Second))
	}
	return StatusPage{
		Info:    "process information",
		Handler: handler,
	}
}

// NewConfigStatusPage serves the TOML rendering of the running config.
func NewConfigStatusPage(config any) StatusPage {
	handler := func(w http.ResponseWriter, r *http.Request) {
		raw, err := toml.Marshal(config)
		if err != nil {
			http.Error(w, "Unable to marshal config", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(raw)
	}
	return StatusPage{
		Info:    "configuration",
		Handler: handler,
	}
}

// NewLogLevelStatusPage serves the console log level. GET returns the level,
// PUT with ?level=<lvl> changes it at runtime.
func NewLogLevelStatusPage() StatusPage {
	// Evaluated per request: Setup swaps the package level out.
	handler := func(w http.ResponseWriter, r *http.Request) {
		log.ConsoleLevel.ServeHTTP(w, r)
	}
	return StatusPage{
		Info:    "console log level (GET|PUT)",
		Handler: handler,
	}
}
