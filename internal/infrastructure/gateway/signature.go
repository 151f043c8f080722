package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/xiebiao/storefront/internal/domain/webhook"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// DefaultTolerance 签名时间戳允许的最大偏差
const DefaultTolerance = 5 * time.Minute

// SignPayload 计算签名头 t=<unix>,v1=<hex hmac-sha256(secret, t + "." + payload)>
func SignPayload(secret string, payload []byte, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + computeSignature(secret, t, payload)
}

func computeSignature(secret, t string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(t))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureVerifier 校验网关回调签名
type SignatureVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewSignatureVerifier 创建签名校验器,tolerance<=0时使用DefaultTolerance
func NewSignatureVerifier(secret string, tolerance time.Duration) *SignatureVerifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &SignatureVerifier{secret: secret, tolerance: tolerance}
}

// Verify 校验签名头
// 头中可以有多个v1(密钥轮换),任意一个匹配即通过
func (v *SignatureVerifier) Verify(payload []byte, header string, now time.Time) error {
	var ts string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if ts == "" || len(signatures) == 0 {
		return apperrors.WithDetail(webhook.ErrInvalidSignature, "签名头格式错误")
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return apperrors.WithDetail(webhook.ErrInvalidSignature, "时间戳格式错误")
	}
	if skew := now.Sub(time.Unix(unix, 0)); skew > v.tolerance || skew < -v.tolerance {
		return apperrors.WithDetail(webhook.ErrInvalidSignature, "时间戳超出允许范围")
	}

	expected := computeSignature(v.secret, ts, payload)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return webhook.ErrInvalidSignature
}
