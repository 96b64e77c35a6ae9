//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/medrag/internal/api/handlers"
	"github.com/cloo-solutions/medrag/internal/extract"
	"github.com/cloo-solutions/medrag/internal/repository"
	"github.com/cloo-solutions/medrag/internal/server"
	"github.com/cloo-solutions/medrag/internal/service"
	"github.com/cloo-solutions/medrag/internal/storage"
	"github.com/cloo-solutions/medrag/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	testCollection = "medical_docs"
	testToken      = "e2e-token"
	testBucket     = "medrag-corpus"
	testPrefix     = "guidelines/"
)

// E2ETestEnv is a running medrag stack: Postgres, RustFS, the real services
// behind an httptest server, and optionally the two built binaries. Everything
// is torn down by t.Cleanup.
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	Postgres   *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	ServerURL  string
	S3Client   *storage.S3Client
	Ingest     *service.IngestService
	BinaryDir  string
	HTTPClient *http.Client
}

// SetupE2EEnv wires the real services with a deterministic embedder.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pg := testutil.NewPostgresContainer(ctx, t)
	rustfs := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pg, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        rustfs.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSAccessKey,
		SecretAccessKey: testutil.RustFSSecretKey,
		Bucket:          testBucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("s3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("create bucket %s: %v", testBucket, err)
	}

	embedder := keywordEmbedder{}
	collections := repository.NewCollectionRepository(pool)
	index := repository.NewIndexRepository(pool)

	ingestSvc, err := service.NewIngestService(
		extract.NewExtractor(),
		embedder,
		collections,
		index,
		repository.NewIngestLock(pool),
		service.IngestConfig{Collection: testCollection, Chunk: service.DefaultChunkParams(), Workers: 4, BatchSize: 8},
	)
	if err != nil {
		t.Fatalf("ingest service: %v", err)
	}

	retriever := service.NewRetriever(embedder, collections, index, service.RetrieverConfig{Collection: testCollection, MaxTopK: 50})
	composer := service.NewComposer(nil, nil, service.DefaultComposerConfig())
	answers := service.NewAnswerService(retriever, composer, 5)
	catalog := service.NewCatalog(collections, index, testCollection)

	srv := httptest.NewServer(server.NewRouter(server.RouterConfig{
		APIToken:     testToken,
		QueryHandler: handlers.NewQueryHandler(answers),
		IndexHandler: handlers.NewIndexHandler(catalog, answers, string(composer.DefaultMode())),
	}))
	t.Cleanup(srv.Close)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		Postgres:   pg,
		Pool:       pool,
		ServerURL:  srv.URL,
		S3Client:   s3Client,
		Ingest:     ingestSvc,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WriteCorpus writes files into a fresh local directory.
func (e *E2ETestEnv) WriteCorpus(files map[string]string) string {
	dir := e.T.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			e.T.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

// BuildBinaries compiles medragd and medrag into a temp dir.
func (e *E2ETestEnv) BuildBinaries() {
	e.BinaryDir = e.T.TempDir()
	for _, name := range []string{"medragd", "medrag"} {
		build := exec.Command("go", "build", "-o", filepath.Join(e.BinaryDir, name), "./cmd/"+name)
		build.Dir = "../.."
		if out, err := build.CombinedOutput(); err != nil {
			e.T.Fatalf("go build %s: %v\n%s", name, err, out)
		}
	}
}

// RunMedrag runs the client CLI against the test server
func (e *E2ETestEnv) RunMedrag(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "medrag"), args...)
	cmd.Dir = e.T.TempDir()
	cmd.Env = append(os.Environ(),
		"MEDRAG_API_TOKEN="+testToken,
		"MEDRAG_API_URL="+e.ServerURL+"/query",
		"HOME="+cmd.Dir,
		"XDG_CONFIG_HOME="+cmd.Dir,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunMedragd runs the daemon CLI against the test database
func (e *E2ETestEnv) RunMedragd(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "medragd"), args...)
	cmd.Dir = "../.."
	cmd.Env = append(os.Environ(),
		"MEDRAG_DATABASE_URL="+e.Postgres.ConnectionString(),
		"MEDRAG_INDEX_COLLECTION="+testCollection,
		"MEDRAG_EMBEDDING_MODEL="+keywordEmbedder{}.Model(),
		fmt.Sprintf("MEDRAG_EMBEDDING_DIMENSIONS=%d", keywordEmbedder{}.Dimensions()),
		"MEDRAG_SENTRY_DSN=",
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Do sends an optional JSON body and returns the status and raw response.
func (e *E2ETestEnv) Do(method, path string, body any, token string) (int, []byte, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, payload)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	return resp.StatusCode, raw, err
}

// keywordEmbedder maps text onto fixed marker-word axes so ranking is predictable.
type keywordEmbedder struct{}

var keywords = []string{"asthma", "diabetes", "migraine", "hypertension"}

func (keywordEmbedder) Model() string   { return "keyword-e2e" }
func (keywordEmbedder) Dimensions() int { return len(keywords) }

func (e keywordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.GenerateEmbedding(ctx, t)
	}
	return out, nil
}

func (keywordEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(keywords))
	for i, k := range keywords {
		vec[i] = float32(strings.Count(lower, k)) + 0.01
	}
	return vec, nil
}
