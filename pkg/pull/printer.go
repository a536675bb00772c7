package pull

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"stronglink/pkg/catalog"
	"stronglink/pkg/core"
)

// PrintEntry 打印一条镜像记录
func PrintEntry(w io.Writer, e *core.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "Entry:\t%s\n", e.ID())
	fmt.Fprintf(tw, "URI:\t%s\n", e.URI)
	fmt.Fprintf(tw, "Repo:\t%s\n", e.Repo)
	fmt.Fprintf(tw, "Type:\t%s\n", e.ContentType)
	fmt.Fprintf(tw, "Size:\t%s\n", fmtSize(e.Size))
	fmt.Fprintf(tw, "Content:\t%s\n", e.Content.Hash)
	if e.IsMeta() {
		fmt.Fprintf(tw, "Target:\t%s\n", e.Target)
	}
	fmt.Fprintf(tw, "Fetched:\t%s\n", time.Unix(e.FetchedAt, 0).Format(time.RFC3339))
	return tw.Flush()
}

// PrintFiles 以表格形式列出镜像文件
func PrintFiles(w io.Writer, recs []catalog.FileRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "ENTRY\tTYPE\tSIZE\tURI\n")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", short(r.EntryHash), r.ContentType, fmtSize(r.Size), r.URI)
	}
	return tw.Flush()
}

func short(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func fmtSize(s int64) string {
	if s < 1024 {
		return fmt.Sprintf("%dB", s)
	} else if s < 1024*1024 {
		return fmt.Sprintf("%.1fKB", float64(s)/1024)
	}
	return fmt.Sprintf("%.2fMB", float64(s)/1024/1024)
}

func decodeAttrs(data []byte) (map[string]any, error) {
	body := map[string]any{}
	if len(data) == 0 {
		return body, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}
