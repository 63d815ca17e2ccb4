package utils

import (
	"crypto/rand"
	"math/big"
)

const letterBytes = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// RandString 生成对外展示用的短 ID（帖子 pid、评论 cid）
func RandString(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(letterBytes)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = letterBytes[idx.Int64()]
	}
	return string(b)
}
