/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	// Import all Kubernetes client auth plugins (e.g. Azure, GCP, OIDC, etc.)
	// so configmap sources work against any cluster.
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/gin-gonic/gin"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/chazu/lineage/internal/server"
	"github.com/chazu/lineage/pkg/graph"
	"github.com/chazu/lineage/pkg/source"
	"github.com/chazu/lineage/samples"
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
)

// Query directions accepted by --direction
const (
	DirectionUpstream   = "upstream"
	DirectionDownstream = "downstream"
	DirectionRelevant   = "relevant"
	DirectionCheck      = "check"
)

// Config holds the command-line configuration
type Config struct {
	BindAddress      string
	Sources          sourceList
	Format           string
	MaxUploadBytes   int64
	MaxDocumentBytes int64
	Namespace        string
	Query            string
	Direction        string
	Mode             string
	ShutdownTimeout  time.Duration
}

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
}

// sourceList collects repeated --source flags
type sourceList []source.Ref

func (s *sourceList) String() string {
	parts := make([]string, len(*s))
	for i, ref := range *s {
		parts[i] = ref.String()
	}
	return strings.Join(parts, ",")
}

func (s *sourceList) Set(value string) error {
	ref, err := source.ParseRef(value)
	if err != nil {
		return err
	}
	*s = append(*s, ref)
	return nil
}

// parseFlags parses command-line flags and returns configuration
func parseFlags(fs *flag.FlagSet, args []string) (Config, *zap.Options, error) {
	cfg := Config{}
	fs.StringVar(&cfg.BindAddress, "bind-address", server.DefaultBindAddress, "The address the API server binds to.")
	fs.Var(&cfg.Sources, "source", "A dependency document source as type:ref (file, inline, embedded, http, configmap). "+
		"Repeat to merge several documents. Defaults to the embedded sample.")
	fs.StringVar(&cfg.Format, "format", "", "Format of sources that do not imply one (json, jsonc, yaml, cue). "+
		"Empty means detect from the content.")
	fs.Int64Var(&cfg.MaxUploadBytes, "max-upload-bytes", server.DefaultMaxUploadBytes, "The largest document accepted by upload.")
	fs.Int64Var(&cfg.MaxDocumentBytes, "max-document-bytes", server.DefaultMaxUploadBytes,
		"The largest document read from file and http sources.")
	fs.StringVar(&cfg.Namespace, "namespace", "", "The namespace of configmap sources that do not name one.")
	fs.StringVar(&cfg.Query, "query", "", "Run a single query for this job, print the result and exit.")
	fs.StringVar(&cfg.Direction, "direction", DirectionCheck, "The query to run: upstream, downstream, relevant or check.")
	fs.StringVar(&cfg.Mode, "mode", string(graph.ModeDirect), "The traversal mode: direct or transitive.")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", server.DefaultShutdownTimeout,
		"How long in-flight requests may take to finish on shutdown.")

	opts := &zap.Options{Development: true}
	opts.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}

	if len(cfg.Sources) == 0 {
		cfg.Sources = sourceList{{Type: source.TypeEmbedded, Ref: source.DefaultEmbeddedRef}}
	}
	if _, err := source.ParseFormat(cfg.Format); err != nil {
		return Config{}, nil, err
	}
	if _, err := graph.ParseMode(cfg.Mode); err != nil {
		return Config{}, nil, err
	}
	return cfg, opts, nil
}

// needsCluster reports whether any source is read from Kubernetes
func (c Config) needsCluster() bool {
	for _, ref := range c.Sources {
		if ref.Type == source.TypeConfigMap {
			return true
		}
	}
	return false
}

// newLoader creates the document loader, with a Kubernetes client only when
// a configmap source needs one
func newLoader(cfg Config) (*source.Loader, error) {
	format, err := source.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	lc := source.LoaderConfig{
		Namespace:        cfg.Namespace,
		EmbeddedFS:       samples.FS,
		EmbeddedDefault:  samples.Default,
		MaxDocumentBytes: cfg.MaxDocumentBytes,
		DefaultFormat:    format,
	}
	if cfg.needsCluster() {
		restConfig, err := ctrl.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
		}
		k8sClient, err := client.New(restConfig, client.Options{Scheme: scheme})
		if err != nil {
			return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
		}
		lc.K8sClient = k8sClient
	}
	return source.NewLoader(lc), nil
}

// runQuery loads the sources, runs one query and writes the result as JSON
func runQuery(ctx context.Context, loader *source.Loader, cfg Config, out io.Writer) error {
	res, err := loader.Load(ctx, cfg.Sources...)
	if err != nil {
		return err
	}
	mode, err := graph.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	var result any
	idx := res.Index
	switch cfg.Direction {
	case DirectionCheck:
		result, err = idx.Check(cfg.Query, mode)
	case DirectionUpstream, DirectionDownstream, DirectionRelevant:
		var jobs []string
		switch cfg.Direction {
		case DirectionUpstream:
			jobs, err = idx.Upstream(cfg.Query, mode)
		case DirectionDownstream:
			jobs, err = idx.Downstream(cfg.Query, mode)
		default:
			jobs, err = idx.Relevant(cfg.Query, mode)
		}
		result = server.JobsResponse{Job: cfg.Query, Mode: mode, Jobs: jobs}
	default:
		return fmt.Errorf("unknown direction %q (expected upstream, downstream, relevant or check)", cfg.Direction)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func main() {
	cfg, opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(opts)))
	ctx := ctrl.SetupSignalHandler()

	loader, err := newLoader(cfg)
	if err != nil {
		setupLog.Error(err, "unable to create loader")
		os.Exit(1)
	}

	setupLog.V(1).Info("source types available", "types", loader.Registry().Types())

	if cfg.Query != "" {
		if err := runQuery(ctx, loader, cfg, os.Stdout); err != nil {
			setupLog.Error(err, "query failed", "job", cfg.Query, "direction", cfg.Direction)
			os.Exit(1)
		}
		return
	}

	res, err := loader.Load(ctx, cfg.Sources...)
	if err != nil {
		setupLog.Error(err, "unable to load dependency graph", "sources", cfg.Sources.String())
		os.Exit(1)
	}
	holder := server.NewHolder(nil)
	holder.Install(res, server.OriginStartup)

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(server.Config{
		BindAddress:     cfg.BindAddress,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		ResetRefs:       cfg.Sources,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          ctrl.Log.WithName("server"),
	}, loader, holder)

	setupLog.Info("starting server", "address", cfg.BindAddress, "jobs", res.Index.Size())
	if err := srv.Start(ctx); err != nil {
		setupLog.Error(err, "problem running server")
		os.Exit(1)
	}
}
