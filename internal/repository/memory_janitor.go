package repository

import (
	"sync"
	"time"
)

// janitor 期限切れエントリを定期的に掃除するゴルーチン
// 読み出し側でも期限を確認するため、掃除はメモリ回収のためだけに行う
type janitor struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func startJanitor(interval time.Duration, sweep func()) *janitor {
	j := &janitor{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go func() {
		defer close(j.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sweep()
			case <-j.stop:
				return
			}
		}
	}()
	return j
}

// Stop ゴルーチンを停止し、終了を待つ
func (j *janitor) Stop() {
	if j == nil {
		return
	}
	j.once.Do(func() { close(j.stop) })
	<-j.done
}
