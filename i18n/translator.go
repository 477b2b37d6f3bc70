package i18n

import "sync"

// Translator retrieves localized messages for error codes.
// data provides optional metadata to embed in the message (for example,
// "expected" or "field").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	switch t.lang {
	case "ja":
		switch code {
		case "invalid_type":
			return "型が不正です"
		case "required":
			return "必須フィールドが不足しています"
		case "invalid_enum":
			return "列挙値が不正です"
		case "invalid_format":
			return "形式が不正です"
		case "no_matching_variant":
			return "一致するバリアントがありません"
		case "too_small":
			return "小さすぎます"
		case "too_big":
			return "大きすぎます"
		case "too_short":
			return "短すぎます"
		case "too_long":
			return "長すぎます"
		case "pattern":
			return "パターンに一致しません"
		case "parse_error":
			return "解析エラー"
		case "custom_rule":
			return "ルール違反です"
		case "unknown_serializer":
			return "未知のシリアライザです"
		}
	default: // "en"
		switch code {
		case "invalid_type":
			return "invalid type"
		case "required":
			return "required field missing"
		case "invalid_enum":
			return "invalid enum value"
		case "invalid_format":
			return "invalid format"
		case "no_matching_variant":
			return "no matching union variant"
		case "too_small":
			return "too small"
		case "too_big":
			return "too big"
		case "too_short":
			return "too short"
		case "too_long":
			return "too long"
		case "pattern":
			return "pattern mismatch"
		case "parse_error":
			return "parse error"
		case "custom_rule":
			return "rule violated"
		case "unknown_serializer":
			return "unknown serializer"
		}
	}
	// Fall back to the raw code so callers always get something printable.
	return code
}

var (
	mu      sync.RWMutex
	current Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in dictionary language ("en", "ja").
func SetLanguage(lang string) {
	mu.Lock()
	current = dictTranslator{lang: lang}
	mu.Unlock()
}

// SetTranslator installs a custom Translator.
func SetTranslator(t Translator) {
	mu.Lock()
	current = t
	mu.Unlock()
}

// T translates a code using the current Translator.
func T(code string, data map[string]string) string {
	mu.RLock()
	t := current
	mu.RUnlock()
	return t.Message(code, data)
}
