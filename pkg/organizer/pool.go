package organizer

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/moyu-x/organize/pkg/logger"
)

// workerPool 包装 ants 协程池，Submit 在池满时阻塞
type workerPool struct {
	pool *ants.Pool
	wg   sync.WaitGroup
}

func newWorkerPool(workers int) (*workerPool, error) {
	logger.Get().Debug().Msgf("创建处理池，工作线程数: %d", workers)
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &workerPool{pool: pool}, nil
}

// Submit 提交任务，提交失败时返回错误且任务不会执行
func (p *workerPool) Submit(task func()) error {
	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		task()
	})
	if err != nil {
		p.wg.Done()
	}
	return err
}

// Wait 等待所有已提交任务完成并释放协程池
func (p *workerPool) Wait() {
	p.wg.Wait()
	p.pool.Release()
}
