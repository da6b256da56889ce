package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"wallet-vault/internal/app"
)

var stdin = bufio.NewReader(os.Stdin)

// readSecret 在终端上无回显读取，管道输入时读取一行
func readSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("读取输入失败: %w", err)
		}
		return string(b), nil
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("读取输入失败: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// password 优先使用会话中缓存的密码，否则提示输入。
// 金库尚未创建时要求输入两次确认。
func password(ctx context.Context, a *app.App) (string, error) {
	if pw, err := a.Password(ctx, ""); err == nil {
		return pw, nil
	}

	pw, err := readSecret("输入金库密码: ")
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errors.New("密码不能为空")
	}

	listing, err := a.Wallets.List(ctx, pw)
	if err != nil {
		return "", err
	}
	if listing.Missing {
		confirm, err := readSecret("首次使用，请再次输入密码确认: ")
		if err != nil {
			return "", err
		}
		if confirm != pw {
			return "", errors.New("两次输入的密码不一致")
		}
	}
	return pw, nil
}

// confirm 询问 y/N
func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt+" (y/N): ")
	input, _ := stdin.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}
