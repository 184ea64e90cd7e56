package database

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	postgrest "github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
)

const restPath = "/rest/v1"

// SupabaseClient Supabaseクライアントのラッパー
type SupabaseClient struct {
	Client *supabase.Client
	// rest テーブル操作用。リクエストごとに requestTimeout で打ち切る
	rest *postgrest.Client
}

// NewSupabaseClient 新しいSupabaseクライアントを作成
//
// PostgRESTの Execute は context を受け取らないため、requestTimeout を1リクエストの上限にする。
func NewSupabaseClient(supabaseURL, supabaseAnonKey string, requestTimeout time.Duration, logger *zap.Logger) (*SupabaseClient, error) {
	if supabaseURL == "" {
		return nil, fmt.Errorf("SUPABASE_URL環境変数が設定されていません")
	}
	if supabaseAnonKey == "" {
		return nil, fmt.Errorf("SUPABASE_ANON_KEY環境変数が設定されていません")
	}

	// クライアントオプションの設定
	client, err := supabase.NewClient(supabaseURL, supabaseAnonKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("Supabaseクライアントの初期化に失敗: %w", err)
	}

	rest := postgrest.NewClient(supabaseURL+restPath, "public", map[string]string{
		"Authorization": "Bearer " + supabaseAnonKey,
		"apikey":        supabaseAnonKey,
	})
	if rest.ClientError != nil {
		return nil, fmt.Errorf("PostgRESTクライアントの初期化に失敗: %w", rest.ClientError)
	}
	if requestTimeout > 0 {
		rest.Transport.Parent = &timeoutTransport{base: http.DefaultTransport, timeout: requestTimeout}
	}

	logger.Info("✅ Supabase client initialized",
		zap.String("url", supabaseURL),
		zap.Duration("request_timeout", requestTimeout))
	return &SupabaseClient{
		Client: client,
		rest:   rest,
	}, nil
}

// GetClient Supabaseクライアントを取得
func (sc *SupabaseClient) GetClient() *supabase.Client {
	return sc.Client
}

// From タイムアウト付きでテーブルを操作する
func (sc *SupabaseClient) From(table string) *postgrest.QueryBuilder {
	return sc.rest.From(table)
}

// HealthCheck データベース接続のヘルスチェック
func (sc *SupabaseClient) HealthCheck(ctx context.Context) error {
	if sc.Client == nil || sc.rest == nil {
		return fmt.Errorf("Supabaseクライアントが初期化されていません")
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := sc.Client.From("cells").Select("cell", "exact", true).Execute()
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("Supabaseへの接続確認に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("Supabaseへの接続確認がタイムアウト: %w", ctx.Err())
	}
}

// timeoutTransport リクエストに期限付きのcontextを付ける
type timeoutTransport struct {
	base    http.RoundTripper
	timeout time.Duration
}

func (t *timeoutTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), t.timeout)
	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	// 本文を読み終えるまで期限を維持する
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
