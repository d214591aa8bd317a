package repository

import "errors"

// ErrJobNotFound は指定されたIDのジョブが存在しない場合のエラー
var ErrJobNotFound = errors.New("job not found")
