package shell

import (
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/hitoshi/weatherdesk/internal/model"
)

// Mode はログイン画面で表示するフォーム。
type Mode string

const (
	ModeSignIn Mode = "signin"
	ModeSignUp Mode = "signup"
)

// 画面に表示する成功メッセージ
const (
	MsgLoginSuccessful = "Login successful!"
	MsgAccountCreated  = "Account created successfully! Please check your email to verify your account."
)

// View はクライアント1つ分の画面状態。
// Clientのロック下でのみ更新し、外部にはコピーを渡す。
type View struct {
	Mode Mode

	// ログイン・サインアップフォーム
	AuthError string
	Notice    string

	// 天気表示
	Weather     *model.WeatherResult
	SearchError string
	Loading     bool
	LastCity    string
}

// clearAuthMessages はフォームのメッセージを消す。
func (v *View) clearAuthMessages() {
	v.AuthError = ""
	v.Notice = ""
}

// takeMessages は表示用のコピーを返し、メッセージを消す。
// メッセージは1回の表示でのみ使う。
func (v *View) takeMessages() View {
	shown := *v
	v.clearAuthMessages()
	v.SearchError = ""
	return shown
}

// reset はサインアウト時に画面状態を初期化する。
func (v *View) reset() {
	*v = View{Mode: ModeSignIn}
}

// Capitalize は先頭の1文字だけを大文字にする。
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// FormatNumber は表示用に数値を整形する。整数値は小数点を付けない。
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
