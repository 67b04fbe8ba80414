package redis_functions

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Function names registered by the embedded libraries.
const (
	LockRelease = "auction_lock_release"
)

//go:embed *.lua
var fs embed.FS

// LoadAll loads every embedded Lua library, replacing older versions.
func LoadAll(ctx context.Context, rdb redis.Cmdable) error {
	files, err := fs.ReadDir(".")
	if err != nil {
		return fmt.Errorf("read embed dir: %w", err)
	}
	loaded := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".lua") {
			continue
		}

		code, err := fs.ReadFile(f.Name())
		if err != nil {
			return err
		}
		if err := rdb.FunctionLoadReplace(ctx, string(code)).Err(); err != nil {
			return fmt.Errorf("load lua %s: %w", f.Name(), err)
		}
		loaded++
		zap.L().Info("lua library loaded", zap.String("file", f.Name()))
	}
	if loaded == 0 {
		return fmt.Errorf("no lua libraries embedded")
	}
	return nil
}
