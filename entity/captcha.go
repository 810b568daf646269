package entity

import "time"

// CaptchaChallenge lives only in the captcha store and is destroyed on first consumption.
type CaptchaChallenge struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type CaptchaView struct {
	ID               string `json:"id"`
	SvgData          string `json:"svgData"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}
