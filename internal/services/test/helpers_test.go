package services_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/bionicotaku/carcare-services-estimate/internal/infrastructure/gcs"
	"github.com/bionicotaku/carcare-services-estimate/internal/models/vo"
)

type logLine struct {
	level log.Level
	msg   string
}

// captureLogger 记录每条日志的级别与 msg 字段。
type captureLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *captureLogger) Log(level log.Level, keyvals ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var msg string
	for i := 0; i+1 < len(keyvals); i += 2 {
		if keyvals[i] == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
		}
	}
	l.lines = append(l.lines, logLine{level: level, msg: msg})
	return nil
}

func (l *captureLogger) count(level log.Level, contains string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.level == level && strings.Contains(line.msg, contains) {
			n++
		}
	}
	return n
}

type fakeObjectStore struct {
	info      *gcs.ObjectInfo
	attrsErr  error
	content   string
	openErr   error
	stageErr  error
	staged    []string
	removed   int
	opened    int
	closed    int
	attrCalls int
}

func (f *fakeObjectStore) Attrs(context.Context, string, string) (*gcs.ObjectInfo, error) {
	f.attrCalls++
	if f.attrsErr != nil {
		return nil, f.attrsErr
	}
	if f.info == nil {
		return &gcs.ObjectInfo{}, nil
	}
	return f.info, nil
}

type closeCounter struct {
	io.Reader
	store *fakeObjectStore
}

func (c closeCounter) Close() error {
	c.store.closed++
	return nil
}

func (f *fakeObjectStore) Open(context.Context, string, string) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	return closeCounter{Reader: strings.NewReader(f.content), store: f}, nil
}

func (f *fakeObjectStore) Stage(_ context.Context, _ string, object string) (*gcs.StagedObject, error) {
	if f.stageErr != nil {
		return nil, f.stageErr
	}
	f.staged = append(f.staged, object)
	return gcs.NewStagedObject("/tmp/staged-"+fmt.Sprint(len(f.staged)), int64(len(f.content)), func() { f.removed++ }), nil
}

type fakePredictor struct {
	targets      []vo.AnalysisTarget
	bodies       []string
	result       vo.PredictionResult
	err          error
	unconfigured bool
}

func (f *fakePredictor) Configured() bool { return !f.unconfigured }

func (f *fakePredictor) Predict(_ context.Context, target vo.AnalysisTarget) (vo.PredictionResult, error) {
	f.targets = append(f.targets, target)
	if s, ok := target.Image.(vo.ByStream); ok && s.Reader != nil {
		data, _ := io.ReadAll(s.Reader)
		f.bodies = append(f.bodies, string(data))
	}
	if f.err != nil {
		return nil, f.err
	}
	out := vo.PredictionResult{}
	for k, v := range f.result {
		out[k] = v
	}
	if target.Object != nil {
		out = out.WithImageURL("https://img/" + target.Object.Path)
	}
	return out, nil
}
