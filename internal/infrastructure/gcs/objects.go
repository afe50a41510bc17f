package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// ErrObjectNotFound 表示对象不存在（可能已被删除）。
var ErrObjectNotFound = errors.New("gcs: object not found")

// ObjectInfo 是对象属性中流水线关心的部分。
type ObjectInfo struct {
	ContentType string
	Metadata    map[string]string
	Size        int64
}

// StagedObject 是下载到本地的对象副本。Remove 删除临时文件，可重复调用。
type StagedObject struct {
	Path   string
	Size   int64
	remove func()
}

// NewStagedObject 包装一个已存在的本地文件，remove 负责清理。
func NewStagedObject(path string, size int64, remove func()) *StagedObject {
	return &StagedObject{Path: path, Size: size, remove: remove}
}

// Remove 删除暂存文件。
func (s *StagedObject) Remove() {
	if s != nil && s.remove != nil {
		s.remove()
	}
}

// ObjectStore 封装对象属性查询、暂存下载与流式读取。
type ObjectStore struct {
	client     *storage.Client
	stagingDir string
	log        *log.Helper
}

// NewObjectStore 构造 ObjectStore；stagingDir 为空时使用系统临时目录。
func NewObjectStore(client *storage.Client, stagingDir string, logger log.Logger) *ObjectStore {
	return &ObjectStore{
		client:     client,
		stagingDir: stagingDir,
		log:        log.NewHelper(logger),
	}
}

// Attrs 查询对象的 contentType 与自定义元数据。
func (s *ObjectStore) Attrs(ctx context.Context, bucket, object string) (*ObjectInfo, error) {
	attrs, err := s.client.Bucket(bucket).Object(object).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("gcs: object attrs: %w", err)
	}
	return &ObjectInfo{
		ContentType: attrs.ContentType,
		Metadata:    attrs.Metadata,
		Size:        attrs.Size,
	}, nil
}

// Open 返回对象内容的实时读取流，由调用方关闭。
func (s *ObjectStore) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: gs://%s/%s", ErrObjectNotFound, bucket, object)
		}
		return nil, fmt.Errorf("gcs: open object: %w", err)
	}
	return reader, nil
}

// Stage 将对象下载到本地临时文件。失败时不会遗留文件。
func (s *ObjectStore) Stage(ctx context.Context, bucket, object string) (*StagedObject, error) {
	reader, err := s.Open(ctx, bucket, object)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return stageFrom(reader, s.stagingDir, path.Ext(object), s.log)
}

func stageFrom(src io.Reader, dir, ext string, helper *log.Helper) (*StagedObject, error) {
	file, err := os.CreateTemp(dir, "stage-"+uuid.NewString()+"-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("gcs: create staging file: %w", err)
	}
	name := file.Name()
	remove := func() {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			helper.Warnf("gcs: remove staging file %s: %v", name, err)
		}
	}

	size, copyErr := io.Copy(file, src)
	closeErr := file.Close()
	if copyErr != nil {
		remove()
		return nil, fmt.Errorf("gcs: download object: %w", copyErr)
	}
	if closeErr != nil {
		remove()
		return nil, fmt.Errorf("gcs: flush staging file: %w", closeErr)
	}
	return NewStagedObject(name, size, remove), nil
}
