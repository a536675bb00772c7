// Package ignore 判断 sln import 时哪些路径应该跳过
package ignore

import (
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FileName 是用户自定义规则所在的文件，位于导入目录的根
const FileName = ".slnignore"

// defaultRules 总是生效，用户规则只能在此基础上追加
var defaultRules = []string{
	".sln", // 本地镜像目录，导入它会把镜像再提交一遍
	".git",
	FileName,

	"client.json", // 含有会话 cookie
	".env",

	".DS_Store",
	"Thumbs.db",
}

// Matcher 封装了忽略逻辑
type Matcher struct {
	ignorer *gitignore.GitIgnore
}

// NewMatcher 读取 rootPath 下的 .slnignore (如果有) 并与默认规则合并
func NewMatcher(rootPath string) (*Matcher, error) {
	path := filepath.Join(rootPath, FileName)

	var (
		ignorer *gitignore.GitIgnore
		err     error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		ignorer, err = gitignore.CompileIgnoreFileAndLines(path, defaultRules...)
	} else {
		ignorer = gitignore.CompileIgnoreLines(defaultRules...)
	}
	if err != nil {
		return nil, err
	}
	return &Matcher{ignorer: ignorer}, nil
}

// Matches 返回 true 表示跳过
// path 是相对于导入根目录、以 / 分隔的路径，例如 "photos/a.jpg"
func (m *Matcher) Matches(path string) bool {
	if m == nil || m.ignorer == nil {
		return false
	}
	return m.ignorer.MatchesPath(filepath.ToSlash(path))
}
