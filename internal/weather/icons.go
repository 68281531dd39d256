package weather

// DefaultIconKey は未知のアイコンコードに使うキー。
const DefaultIconKey = "clear"

// iconKeys はOpenWeatherのアイコンコードと表示用アイコンキーの対応表。
var iconKeys = map[string]string{
	"01d": "clear",
	"01n": "clear",
	"02d": "cloud",
	"02n": "cloud",
	"03d": "drizzle",
	"03n": "drizzle",
	"04d": "humidity",
	"04n": "humidity",
	"09d": "rain",
	"09n": "rain",
	"10d": "rain",
	"10n": "rain",
	"11d": "rain",
	"11n": "rain",
	"13d": "snow",
	"13n": "snow",
	"50d": "wind",
	"50n": "wind",
}

// IconKey はアイコンコードに対応するキーを返す。表にないコードはDefaultIconKey。
func IconKey(code string) string {
	if key, ok := iconKeys[code]; ok {
		return key
	}
	return DefaultIconKey
}
