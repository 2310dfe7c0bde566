package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/farm-records/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 || cw.size+int64(len(b)) <= cw.limit {
		cw.buf.Write(b)
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// overflow reports whether the body outgrew the capture limit.
func (cw *captureWriter) overflow() bool {
	return cw.limit > 0 && cw.size > cw.limit
}

// ResponseCache stores successful responses in Redis per user.  Keys look
// like <prefix>:u:<user>:<sha1(method path query)> so that one SCAN can drop
// everything cached for a user after a write.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	log *zap.Logger
}

func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *ResponseCache {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) enabled() bool {
	return rc != nil && rc.cfg.Enabled && rc.rdb != nil
}

func (rc *ResponseCache) userPrefix(uid string) string {
	return rc.cfg.Prefix + ":u:" + uid + ":"
}

func (rc *ResponseCache) keyFor(c echo.Context) string {
	r := c.Request()
	sum := sha1.Sum([]byte(r.Method + " " + r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("%s%x", rc.userPrefix(currentUserID(c)), sum[:])
}

// Middleware serves cached responses for the configured methods and
// stores 200 responses on a miss.  Requests sent with
// "Cache-Control: no-cache" always reach the handler.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.enabled() {
		return passThrough
	}
	maxBody := int64(rc.cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !rc.cfg.Methods[strings.ToUpper(req.Method)] {
				return next(c)
			}
			key := rc.keyFor(c)
			ctx := req.Context()

			if !strings.Contains(req.Header.Get("Cache-Control"), "no-cache") {
				if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
					if status, hdr, body, ok := decodePayload(bs); ok {
						for k, vals := range hdr {
							if strings.EqualFold(k, "Content-Length") {
								continue
							}
							for _, v := range vals {
								c.Response().Header().Add(k, v)
							}
						}
						c.Response().Header().Set("X-Cache", "HIT")
						c.Response().WriteHeader(status)
						if len(body) > 0 {
							_, _ = c.Response().Write(body)
						}
						return nil
					}
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.overflow() {
				return nil
			}
			hdr := make(http.Header, len(c.Response().Header()))
			for k, vals := range c.Response().Header() {
				if strings.EqualFold(k, "X-Cache") {
					continue
				}
				hdr[k] = append([]string(nil), vals...)
			}
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := rc.rdb.SetEx(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL).Err(); err != nil {
				rc.log.Warn("cache: store failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

// InvalidateOnWrite drops the user's cached responses after every
// successful request whose method is not cached itself.
func (rc *ResponseCache) InvalidateOnWrite() echo.MiddlewareFunc {
	if !rc.enabled() {
		return passThrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return err
			}
			if err == nil && c.Response().Status < 400 {
				if uid, ok := UserID(c); ok {
					if ierr := rc.InvalidateUser(context.WithoutCancel(c.Request().Context()), uid); ierr != nil {
						rc.log.Warn("cache: invalidate failed", zap.String("user_id", uid), zap.Error(ierr))
					}
				}
			}
			return err
		}
	}
}

// InvalidateUser deletes every cached response of uid.
func (rc *ResponseCache) InvalidateUser(ctx context.Context, uid string) error {
	if !rc.enabled() {
		return nil
	}
	iter := rc.rdb.Scan(ctx, 0, rc.userPrefix(uid)+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			if err := rc.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return rc.rdb.Del(ctx, keys...).Err()
	}
	return nil
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:8+len(hdrJSON)], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
