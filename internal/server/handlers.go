package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jonathan/weixin-spider/internal/crawlerr"
	"github.com/jonathan/weixin-spider/internal/tools"
	"github.com/jonathan/weixin-spider/internal/types"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type articleOp func(ctx context.Context, url string, opts types.RequestOptions) any

type multiOp func(ctx context.Context, urls []string, opts types.RequestOptions) any

func (s *Server) articleHandler(op articleOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ArticleRequest
		if err := decodeBody(w, r, &req); err != nil {
			s.result(w, tools.NewErrorResult(err))
			return
		}
		s.result(w, op(r.Context(), req.URL, req.RequestOptions))
	}
}

func (s *Server) multiHandler(op multiOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.MultiArticleRequest
		if err := decodeBody(w, r, &req); err != nil {
			s.result(w, tools.NewErrorResult(err))
			return
		}
		s.result(w, op(r.Context(), req.URLs, req.RequestOptions))
	}
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &crawlerr.ValidationError{Field: "body", Message: fmt.Sprintf("invalid request body: %v", err)}
	}
	return nil
}
