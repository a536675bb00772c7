package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"stronglink/pkg/metafile"
)

// GetMeta 汇总所有以 uri 为目标的 meta-file
//
// 先以非等待模式查询 target='<uri>'，然后逐个下载 meta-file 并合并成属性集。
// 下载是串行的：取完一个才从查询流读下一条，查询连接在此期间被背压暂停。
// 406 (不是 meta-file 的表示形式) 的文件被跳过，其它失败直接返回。
func (r *Repo) GetMeta(ctx context.Context, uri string) (metafile.Attributes, error) {
	if uri == "" {
		return nil, errors.New("missing uri")
	}

	stream, err := r.OpenQuery(ctx, "target='"+uri+"'", QueryOptions{Wait: false})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	attrs := metafile.Attributes{}
	for {
		rec, err := stream.Next()
		if err == io.EOF {
			return attrs, nil
		}
		if err != nil {
			return nil, err
		}

		f, err := r.GetFile(ctx, rec.URI, FileOptions{Accept: metafile.Type})
		if IsStatus(err, http.StatusNotAcceptable) {
			r.logger.Debug("skip non meta-file", slog.String("uri", rec.URI))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("fetch meta-file %s: %w", rec.URI, err)
		}

		_, body, err := metafile.Parse(f.Data)
		if err != nil {
			return nil, fmt.Errorf("parse meta-file %s: %w", rec.URI, err)
		}
		delete(body, metafile.FullTextField)
		attrs.Merge(body)
	}
}
