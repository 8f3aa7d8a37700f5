package filesystem

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	collectionExt = ".json"
	lockExt       = ".lock"
)

// PlatformUtils 平台兼容性工具
type PlatformUtils struct{}

// NewPlatformUtils 创建平台工具实例
func NewPlatformUtils() *PlatformUtils {
	return &PlatformUtils{}
}

// ValidatePath 验证数据目录是否安全
func (p *PlatformUtils) ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("data directory is empty")
	}
	if len(path) > 2000 {
		return fmt.Errorf("path too long: %d characters", len(path))
	}
	for _, part := range strings.FieldsFunc(path, isSeparator) {
		if part == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}
	return nil
}

// IsCaseSensitive 检查当前文件系统是否大小写敏感
func (p *PlatformUtils) IsCaseSensitive() bool {
	switch runtime.GOOS {
	case "windows", "darwin":
		return false
	default:
		return true
	}
}

// NormalizePath 转为绝对路径并清理
func (p *PlatformUtils) NormalizePath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(absPath)
}

// IsValidFilename 检查集合文件名在当前平台上是否可用
func (p *PlatformUtils) IsValidFilename(filename string) bool {
	if strings.Trim(filename, " .") == "" {
		return false
	}
	if strings.ContainsAny(filename, p.invalidChars()) {
		return false
	}
	// Windows 不允许以空格或点结尾
	if runtime.GOOS == "windows" && strings.TrimRight(filename, " .") != filename {
		return false
	}
	return true
}

// CollectionFilename 集合名称对应的数据文件名
func (p *PlatformUtils) CollectionFilename(name string) string {
	return name + collectionExt
}

// CollectionName 从数据文件名还原集合名称，非集合文件返回 false
func (p *PlatformUtils) CollectionName(filename string) (string, bool) {
	if !strings.HasSuffix(filename, collectionExt) {
		return "", false
	}
	name := strings.TrimSuffix(filename, collectionExt)
	if name == "" || strings.HasPrefix(name, ".") {
		return "", false
	}
	return name, true
}

func (p *PlatformUtils) invalidChars() string {
	if runtime.GOOS == "windows" {
		return "<>:\"|?*\\/\x00"
	}
	return "/\x00"
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}
