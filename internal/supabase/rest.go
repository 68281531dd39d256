package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Insert はPostgRESTでtableに行を追加する。rowsは構造体またはそのスライス。
// 呼び出しはコンテキストのアクセストークン（なければanonキー）で認可される。
func (c *Client) Insert(ctx context.Context, table string, rows any) error {
	return c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/rest/v1/" + url.PathEscape(table),
		body:    rows,
		bearer:  AccessTokenFromContext(ctx),
		headers: map[string]string{"Prefer": "return=minimal"},
	}, nil)
}

// SelectSingle はcolumn = valueに一致する最初の行をdestにデコードする。
// 一致する行がなければfalseを返す。
func (c *Client) SelectSingle(ctx context.Context, table, column, value string, dest any) (bool, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set(column, "eq."+value)
	q.Set("limit", "1")

	var rows []json.RawMessage
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/rest/v1/" + url.PathEscape(table),
		query:  q.Encode(),
		bearer: AccessTokenFromContext(ctx),
	}, &rows)
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(rows[0], dest); err != nil {
		return false, fmt.Errorf("failed to decode %s row: %w", table, err)
	}
	return true, nil
}
