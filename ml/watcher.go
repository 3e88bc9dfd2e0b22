package ml

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher 监听模型文件变化并热重载
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	loader   *Loader
	handle   *Handle
	logger   *zap.Logger
	onReload func()
	done     chan struct{}
}

// WatchModel 监听path所在目录（编辑器和训练工具通常以改名方式替换文件），
// 文件变化后经短暂去抖触发重载并替换Handle。onReload在替换后回调，可为nil。
func WatchModel(path string, loader *Loader, handle *Handle, logger *zap.Logger, onReload func()) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		path:     filepath.Clean(path),
		loader:   loader,
		handle:   handle,
		logger:   logger,
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var debounce *time.Timer
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(500*time.Millisecond, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("model watcher error", zap.Error(err))

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	w.logger.Info("model artifact changed, reloading", zap.String("path", w.path))
	model := w.loader.Load()
	if model == nil {
		w.handle.Swap(nil)
	} else {
		w.handle.Swap(model)
	}
	if w.onReload != nil {
		w.onReload()
	}
}

// Close 停止监听
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
