package utils

import "crypto/rand"

// codeAlphabet is the character set verification codes are drawn
// from: uppercase letters and digits, easy to read out of an email.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultCodeLength is used when configuration supplies no length.
const DefaultCodeLength = 6

// GenerateCode returns an n-character verification code built from
// crypto/rand bytes mapped onto the alphabet. Uniqueness against
// other unexpired codes is the store's job, not the generator's.
func GenerateCode(n int) (string, error) {
    if n <= 0 {
        n = DefaultCodeLength
    }
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    for i, b := range buf {
        buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
    }
    return string(buf), nil
}
