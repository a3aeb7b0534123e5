package entity

import "fmt"

// Location приблизительные координаты хоста в десятичных градусах.
// Храним строками, как их отдаёт сервис геолокации.
type Location struct {
	Latitude  string
	Longitude string
}

// FallbackLocation возвращается, когда геолокацию определить не удалось.
var FallbackLocation = Location{Latitude: "0", Longitude: "0"}

// MapURL возвращает ссылку на точку в Google Maps
func (l Location) MapURL() string {
	return fmt.Sprintf("https://www.google.com/maps?q=%s,%s", l.Latitude, l.Longitude)
}
