package utils

import (
	"math"
	"time"
)

type RankConfig struct {
	Gravity        float64 // 时间重力 (1.5)
	WeightBookmark float64 // 3.0
	WeightComment  float64 // 2.0
	WeightLike     float64 // 1.0
	ScaleFactor    float64 // 放大系数 (100)
}

var DefaultRankConfig = RankConfig{
	Gravity:        1.5,
	WeightBookmark: 3.0,
	WeightComment:  2.0,
	WeightLike:     1.0,
	ScaleFactor:    100.0,
}

// CalculateScore 发现页热度：互动加权后取对数，再按发布时间衰减
func CalculateScore(createdAt time.Time, likes, comments, bookmarks int) float64 {
	return DefaultRankConfig.Score(time.Since(createdAt), likes, comments, bookmarks)
}

func (cfg RankConfig) Score(age time.Duration, likes, comments, bookmarks int) float64 {
	hours := age.Hours()
	if hours < 0 {
		hours = 0
	}

	weightedSum := float64(likes)*cfg.WeightLike +
		float64(comments)*cfg.WeightComment +
		float64(bookmarks)*cfg.WeightBookmark
	if weightedSum < 0 {
		weightedSum = 0
	}

	// log10(sum + 1) -> sum=0 时结果为 0
	numerator := math.Log10(weightedSum+1) * cfg.ScaleFactor

	decay := math.Pow(hours+2, cfg.Gravity)

	return numerator / decay
}
