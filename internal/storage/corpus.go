package storage

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloo-solutions/medrag/internal/domain"
)

// LocalCorpus lists eligible documents directly inside a directory.
type LocalCorpus struct {
	dir string
}

func NewLocalCorpus(dir string) *LocalCorpus {
	return &LocalCorpus{dir: dir}
}

func (c *LocalCorpus) Describe() string {
	return c.dir
}

func (c *LocalCorpus) List(ctx context.Context) ([]domain.CorpusFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus dir: %w", err)
	}

	var files []domain.CorpusFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := domain.FormatFor(entry.Name()); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, domain.CorpusFile{
			Name: entry.Name(),
			Key:  filepath.Join(c.dir, entry.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

func (c *LocalCorpus) Open(ctx context.Context, f domain.CorpusFile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(f.Key)
}

// S3Corpus lists eligible documents directly under a bucket prefix.
type S3Corpus struct {
	client *S3Client
	prefix string
}

func NewS3Corpus(client *S3Client, prefix string) *S3Corpus {
	return &S3Corpus{client: client, prefix: prefix}
}

func (c *S3Corpus) Describe() string {
	return "s3://" + c.client.Bucket() + "/" + c.prefix
}

func (c *S3Corpus) List(ctx context.Context) ([]domain.CorpusFile, error) {
	objects, err := c.client.ListObjects(ctx, c.prefix)
	if err != nil {
		return nil, err
	}

	var files []domain.CorpusFile
	for _, obj := range objects {
		name := path.Base(obj.Key)
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		if _, ok := domain.FormatFor(name); !ok {
			continue
		}
		files = append(files, domain.CorpusFile{Name: name, Key: obj.Key, Size: obj.Size})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

func (c *S3Corpus) Open(ctx context.Context, f domain.CorpusFile) ([]byte, error) {
	return c.client.GetObject(ctx, f.Key)
}

// PushCorpus uploads every eligible file of src under prefix and returns the
// number of objects written.
func PushCorpus(ctx context.Context, src *LocalCorpus, dst *S3Client, prefix string) (int, error) {
	files, err := src.List(ctx)
	if err != nil {
		return 0, err
	}

	for i, f := range files {
		content, err := src.Open(ctx, f)
		if err != nil {
			return i, fmt.Errorf("failed to read %s: %w", f.Name, err)
		}
		contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(f.Name)))
		if err := dst.PutObject(ctx, prefix+f.Name, content, contentType); err != nil {
			return i, err
		}
	}
	return len(files), nil
}
