package service

import (
	"math/rand"
	"sync"
	"time"

	"github.com/xurst/simple-generator/internal/domain"
)

// 密码字符集，与前端实现保持一致。
const (
	uppercaseChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowercaseChars = "abcdefghijklmnopqrstuvwxyz"
	numberChars    = "0123456789"
	symbolChars    = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// 密码长度限制。
const (
	MinPasswordLength = 12
	MaxPasswordLength = 500
)

// GenerateOptions 定义一次密码生成的选项。
type GenerateOptions struct {
	Length    int
	Uppercase bool
	Lowercase bool
	Numbers   bool
	Symbols   bool
}

// GeneratorService 负责随机密码生成。
type GeneratorService struct {
	mu     sync.Mutex
	random *rand.Rand
}

// NewGeneratorService 创建密码生成服务。
func NewGeneratorService() *GeneratorService {
	return &GeneratorService{
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate 按选项生成一个随机密码。
//
// 长度被夹取到 [12, 500]，零值取 12；未选择任何字符类型时
// 返回 ErrNoCharset，由调用方转成用户提示。
func (s *GeneratorService) Generate(opts GenerateOptions) (string, error) {
	length := opts.Length
	if length < MinPasswordLength {
		length = MinPasswordLength
	}
	if length > MaxPasswordLength {
		length = MaxPasswordLength
	}

	chars := ""
	if opts.Uppercase {
		chars += uppercaseChars
	}
	if opts.Lowercase {
		chars += lowercaseChars
	}
	if opts.Numbers {
		chars += numberChars
	}
	if opts.Symbols {
		chars += symbolChars
	}
	if chars == "" {
		return "", domain.ErrNoCharset
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	password := make([]byte, length)
	for i := range password {
		password[i] = chars[s.random.Intn(len(chars))]
	}
	return string(password), nil
}
