// Package unsplash はUnsplash画像検索APIのクライアントを提供する。
// 検索結果はパース・再構築せず、上流のJSONをそのままクライアントに中継する。
package unsplash

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
)

const (
	// defaultEndpoint はUnsplash APIのベースURL。
	defaultEndpoint = "https://api.unsplash.com"
	// perPage は1リクエストあたりの取得件数。
	perPage = 20
)

// Client はUnsplash検索APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	accessKey  string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, accessKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		accessKey:  accessKey,
		endpoint:   defaultEndpoint,
	}
}

// SetEndpoint はAPIのベースURLを差し替える。テスト専用。
func (c *Client) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

// SearchPhotos は検索語で画像を検索し、UnsplashのレスポンスJSONをそのまま返す。
// 取得件数は20件固定。上流の失敗はエラーとして返し、
// ステータスコードやエラーメッセージの中身は呼び出し元に漏らさない。
func (c *Client) SearchPhotos(ctx context.Context, term string) (json.RawMessage, error) {
	reqURL, err := url.Parse(c.endpoint + "/search/photos")
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("query", term)
	q.Set("per_page", strconv.Itoa(perPage))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Unsplash APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("term", term),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Unsplash APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("term", term),
		)
		return nil, fmt.Errorf("Unsplash APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	// 中継前に正しいJSONであることだけ確認する
	if !json.Valid(body) {
		c.logger.Error("Unsplash APIのレスポンスが不正なJSONです",
			slog.String("term", term),
		)
		return nil, fmt.Errorf("レスポンスJSONが不正です")
	}

	return json.RawMessage(body), nil
}
