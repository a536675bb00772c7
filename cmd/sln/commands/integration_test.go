package commands

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"stronglink/pkg/client"
	"stronglink/pkg/metafile"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer 是一个内存里的 StrongLink 仓库，够命令行的集成测试使用
type fakeServer struct {
	mu      sync.Mutex
	order   []string
	files   map[string]fakeFile
	cookies []string
}

type fakeFile struct {
	typ    string
	data   []byte
	target string // meta-file 的目标
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	f := &fakeServer{files: map[string]fakeFile{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /sln/query", f.query)
	mux.HandleFunc("GET /sln/metafiles", f.metafiles)
	mux.HandleFunc("GET /sln/file/{algo}/{hash}", f.get)
	mux.HandleFunc("PUT /sln/file/{algo}/{hash}", f.put)
	mux.HandleFunc("POST /sln/file", f.put)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(client.SessionCookie); err == nil {
			f.mu.Lock()
			f.cookies = append(f.cookies, c.Value)
			f.mu.Unlock()
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeServer) typeOf(uri string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[uri].typ
}

func (f *fakeServer) sessions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.cookies)
}

func (f *fakeServer) query(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := r.URL.Query()
	target := ""
	if s := q.Get("q"); strings.HasPrefix(s, "target='") {
		target = strings.TrimSuffix(strings.TrimPrefix(s, "target='"), "'")
	}
	from := 0
	if start := q.Get("start"); start != "" {
		from = slices.Index(f.order, start) + 1
	}
	for _, u := range f.order[from:] {
		if target != "" && f.files[u].target != target {
			continue
		}
		fmt.Fprintln(w, u)
	}
}

func (f *fakeServer) metafiles(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.order {
		if t := f.files[u].target; t != "" {
			fmt.Fprintf(w, "%s -> %s\n", u, t)
		}
	}
}

func (f *fakeServer) get(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files["hash://"+r.PathValue("algo")+"/"+r.PathValue("hash")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", file.typ)
	w.Write(file.data)
}

func (f *fakeServer) put(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sum := sha256.Sum256(data)
	uri := "hash://sha256/" + hex.EncodeToString(sum[:])
	if h := r.PathValue("hash"); h != "" && "hash://sha256/"+h != uri {
		w.WriteHeader(http.StatusConflict)
		return
	}

	file := fakeFile{typ: r.Header.Get("Content-Type"), data: data}
	if file.typ == metafile.Type {
		subject, _, err := metafile.Parse(data)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file.target = subject
	}

	f.mu.Lock()
	if _, ok := f.files[uri]; !ok {
		f.order = append(f.order, uri)
	}
	f.files[uri] = file
	f.mu.Unlock()

	w.Header().Set(client.LocationHeader, uri)
	w.WriteHeader(http.StatusCreated)
}

// setupIntegrationEnv 写一份指向 fake 服务端的配置，本地镜像放在临时目录
func setupIntegrationEnv(t *testing.T) (*fakeServer, string) {
	f, srv := newFakeServer(t)
	dir := t.TempDir()
	cfg := fmt.Sprintf(`{
  "default": "test",
  "repos": {"test": {"url": %q, "session": "tok"}},
  "storage": {"path": %q},
  "database": {"path": %q}
}`, srv.URL+"/", filepath.Join(dir, "objects"), filepath.Join(dir, "catalog.db"))
	cfgPath := filepath.Join(dir, "client.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))
	return f, cfgPath
}

// resetFlags 让包级别的 flag 变量回到默认值，避免测试之间互相影响
func resetFlags(cmd *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	SLN = nil

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := ExecuteContext(context.Background())
	return out.String(), err
}

func TestIntegration_Repos(t *testing.T) {
	_, cfgPath := setupIntegrationEnv(t)

	out, err := run(t, cfgPath, "repos")
	require.NoError(t, err)
	assert.Contains(t, out, "* test")
	assert.Contains(t, out, "(session)")
}

func TestIntegration_SubmitQueryGet(t *testing.T) {
	f, cfgPath := setupIntegrationEnv(t)
	dir := t.TempDir()
	src := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello stronglink"), 0644))

	out, err := run(t, cfgPath, "submit", src)
	require.NoError(t, err)
	uri := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(uri, "hash://sha256/"), uri)
	assert.Equal(t, "text/plain; charset=utf-8", f.typeOf(uri))
	assert.Contains(t, f.sessions(), "tok")

	out, err = run(t, cfgPath, "query")
	require.NoError(t, err)
	assert.Equal(t, uri+"\n", out)

	out, err = run(t, cfgPath, "get", uri)
	require.NoError(t, err)
	assert.Equal(t, "hello stronglink", out)

	dst := filepath.Join(dir, "copy.txt")
	_, err = run(t, cfgPath, "get", uri, "-o", dst)
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello stronglink", string(data))

	_, err = run(t, cfgPath, "get", "hash://sha256/0000")
	assert.True(t, client.IsStatus(err, http.StatusNotFound))
}

func TestIntegration_TagAndMeta(t *testing.T) {
	_, cfgPath := setupIntegrationEnv(t)
	src := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(src, []byte("document"), 0644))

	out, err := run(t, cfgPath, "submit", src)
	require.NoError(t, err)
	uri := strings.TrimSpace(out)

	out, err = run(t, cfgPath, "tag", "", "red", "blue")
	require.NoError(t, err)
	assert.Equal(t, uri+"\n", out)

	out, err = run(t, cfgPath, "metafiles")
	require.NoError(t, err)
	assert.Contains(t, out, " -> "+uri)

	out, err = run(t, cfgPath, "meta", uri)
	require.NoError(t, err)
	assert.Contains(t, out, `"red"`)
	assert.Contains(t, out, `"blue"`)
}

func TestIntegration_ImportPullCat(t *testing.T) {
	_, cfgPath := setupIntegrationEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("beta"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SECRET=1"), 0644))

	out, err := run(t, cfgPath, "import", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "hash://sha256/"))

	// 再导入一次，远端已有的内容不会重新上传
	out, err = run(t, cfgPath, "import", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "(exists)"))

	out, err = run(t, cfgPath, "pull", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "2 fetched")

	// 第二次从断点继续，没有新文件
	out, err = run(t, cfgPath, "pull", "--once")
	require.NoError(t, err)
	assert.Contains(t, out, "0 fetched")

	out, err = run(t, cfgPath, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "ENTRY")
	assert.Equal(t, 2, strings.Count(out, "hash://sha256/"))

	sum := sha256.Sum256([]byte("alpha"))
	alpha := "hash://sha256/" + hex.EncodeToString(sum[:])
	out, err = run(t, cfgPath, "cat", alpha)
	require.NoError(t, err)
	assert.Equal(t, "alpha", out)

	out, err = run(t, cfgPath, "cat", "--info", alpha)
	require.NoError(t, err)
	assert.Contains(t, out, "URI:")
	assert.Contains(t, out, alpha)
}

func TestIntegration_ClosesLocalOnError(t *testing.T) {
	_, cfgPath := setupIntegrationEnv(t)

	// cat 打开了本地目录，随后因为找不到文件而失败
	_, err := run(t, cfgPath, "cat", "hash://sha256/0000")
	require.Error(t, err)
	require.NotNil(t, SLN)

	_, cat, err := SLN.Mirror(context.Background())
	require.NoError(t, err)
	_, err = cat.HasFile(context.Background(), "hash://sha256/0000")
	assert.Error(t, err, "出错的命令也要关闭 catalog")
}

func TestIntegration_UnknownRepo(t *testing.T) {
	_, cfgPath := setupIntegrationEnv(t)

	_, err := run(t, cfgPath, "query", "--repo", "nowhere")
	assert.Error(t, err)
}
