// Command fhe-worker runs homomorphic integer operation workers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/fheint"
	"github.com/luxfi/fheint/internal/queue"
	"github.com/luxfi/fheint/internal/storage"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fheint_jobs_total",
		Help: "Total jobs processed, by operation and status.",
	}, []string{"operation", "status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fheint_job_duration_seconds",
		Help:    "Job processing time, by operation.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"operation"})
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		numWorkers  = flag.Int("workers", 4, "number of worker goroutines")
		redisAddr   = flag.String("redis", "localhost:6379", "Redis address")
		redisDB     = flag.Int("redis-db", 0, "Redis database number")
		queueName   = flag.String("queue", "default", "queue name")
		storagePath = flag.String("storage", "/tmp/fheint-storage", "ciphertext storage path")
		metricsAddr = flag.String("metrics", ":9090", "metrics server address")
		messageBits = flag.Int("message-bits", 2, "message bits per block (1, 2 or 3)")
		security    = flag.String("security", fheint.STD128HighPrec.Name, "security parameter set name")
	)
	flag.Parse()

	log.Printf("fheint worker starting...")
	log.Printf("  Workers: %d", *numWorkers)
	log.Printf("  Redis: %s", *redisAddr)
	log.Printf("  Storage: %s", *storagePath)
	log.Printf("  Metrics: %s", *metricsAddr)
	log.Printf("  Security: %s", *security)

	// Queue.
	q, err := queue.NewRedisQueue(queue.RedisConfig{
		Addr: *redisAddr,
		DB:   *redisDB,
	}, *queueName)
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer q.Close()

	// Storage.
	store, err := storage.NewFileStorage(*storagePath)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}

	var engineParams fheint.Parameters
	switch *messageBits {
	case 1:
		engineParams = fheint.ParamMessage1Carry1
	case 2:
		engineParams = fheint.ParamMessage2Carry2
	case 3:
		engineParams = fheint.ParamMessage3Carry3
	default:
		return fmt.Errorf("unsupported message-bits: %d", *messageBits)
	}

	secParams, ok := fheint.GetSecurityParams(*security)
	if !ok {
		return fmt.Errorf("unknown security parameter set: %s", *security)
	}
	latticeParams, err := secParams.LatticeParameters(engineParams)
	if err != nil {
		return fmt.Errorf("create lattice parameters: %w", err)
	}

	kgen := fheint.NewKeyGenerator(latticeParams)
	secretKey := kgen.GenSecretKey()
	bsk := kgen.GenBootstrapKey(secretKey)

	backend, err := fheint.NewLatticeBackend(latticeParams, engineParams, bsk)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	serverKey, err := fheint.NewServerKey(engineParams, backend)
	if err != nil {
		return fmt.Errorf("create server key: %w", err)
	}

	// Worker pool.
	pool := &WorkerPool{
		numWorkers: *numWorkers,
		queue:      q,
		storage:    store,
		serverKey:  serverKey,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	// Metrics server.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    *metricsAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("Metrics server starting on %s", *metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal: %s", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}

	if err := pool.Stop(); err != nil {
		log.Printf("Worker pool shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}

// WorkerPool manages a pool of homomorphic operation workers.
type WorkerPool struct {
	numWorkers int
	queue      queue.Queue
	storage    storage.Storage
	serverKey  *fheint.ServerKey
	wg         sync.WaitGroup
	cancel     context.CancelFunc
	running    atomic.Bool
}

// Start starts the worker pool.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.running.Load() {
		return errors.New("pool already running")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.running.Store(true)

	log.Printf("Starting %d workers", p.numWorkers)

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	return nil
}

// Stop gracefully stops the worker pool.
func (p *WorkerPool) Stop() error {
	if !p.running.Load() {
		return nil
	}

	log.Println("Stopping worker pool...")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Worker pool stopped")
	case <-time.After(30 * time.Second):
		log.Println("Shutdown timeout exceeded")
		return errors.New("shutdown timeout")
	}

	p.running.Store(false)
	return nil
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log.Printf("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d stopping", id)
			return
		default:
		}

		job, err := p.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("Worker %d: failed to pop job: %v", id, err)
			time.Sleep(time.Second)
			continue
		}

		p.processJob(ctx, id, job)
	}
}

func (p *WorkerPool) processJob(ctx context.Context, workerID int, job *queue.Job) {
	opLabel := strconv.Itoa(int(job.Operation))
	start := time.Now()

	log.Printf("Worker %d: processing job %s (op=%d)", workerID, job.ID, job.Operation)

	job.Status = queue.StatusProcessing
	if err := p.queue.Update(ctx, job); err != nil {
		log.Printf("Worker %d: failed to update job status: %v", workerID, err)
	}

	result, err := p.execute(ctx, job)
	if err != nil {
		job.Status = queue.StatusFailed
		job.Error = err.Error()
		p.queue.Update(ctx, job)
		jobsTotal.WithLabelValues(opLabel, "failure").Inc()
		return
	}

	handle, err := p.storage.Store(ctx, result)
	if err != nil {
		job.Status = queue.StatusFailed
		job.Error = fmt.Sprintf("store result: %v", err)
		p.queue.Update(ctx, job)
		jobsTotal.WithLabelValues(opLabel, "failure").Inc()
		return
	}

	job.Status = queue.StatusCompleted
	job.ResultHandle = string(handle)
	if err := p.queue.Update(ctx, job); err != nil {
		log.Printf("Worker %d: failed to update job result: %v", workerID, err)
	}

	jobsTotal.WithLabelValues(opLabel, "success").Inc()
	jobDuration.WithLabelValues(opLabel).Observe(time.Since(start).Seconds())
	log.Printf("Worker %d: job %s completed", workerID, job.ID)
}

// execute runs the requested operation and returns the serialized result.
func (p *WorkerPool) execute(ctx context.Context, job *queue.Job) ([]byte, error) {
	sk := p.serverKey

	switch job.Operation {
	case queue.OpSelect:
		cond, err := p.loadBoolean(ctx, job.CondHandle)
		if err != nil {
			return nil, err
		}
		ctTrue, err := p.loadCiphertext(ctx, job.TrueHandle)
		if err != nil {
			return nil, err
		}
		ctFalse, err := p.loadCiphertext(ctx, job.FalseHandle)
		if err != nil {
			return nil, err
		}
		result, err := sk.Select(cond, ctTrue, ctFalse)
		if err != nil {
			return nil, fmt.Errorf("select: %w", err)
		}
		return sk.MarshalCiphertext(result)

	case queue.OpScalarSelect:
		cond, err := p.loadBoolean(ctx, job.CondHandle)
		if err != nil {
			return nil, err
		}
		result, err := sk.ScalarSelect(cond, job.Scalar, job.ScalarFalse, job.NumBlocks)
		if err != nil {
			return nil, fmt.Errorf("scalar select: %w", err)
		}
		return sk.MarshalCiphertext(result)

	case queue.OpCrtScalarAdd:
		data, err := p.storage.Load(ctx, storage.Handle(job.TrueHandle))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", job.TrueHandle, err)
		}
		crt, err := sk.UnmarshalCrtCiphertext(data)
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", job.TrueHandle, err)
		}
		result, err := sk.CheckedCrtScalarAdd(crt, job.Scalar)
		if err != nil {
			return nil, fmt.Errorf("crt scalar add: %w", err)
		}
		return sk.MarshalCrtCiphertext(result)

	case queue.OpZeroOutIfFalse:
		cond, err := p.loadBoolean(ctx, job.CondHandle)
		if err != nil {
			return nil, err
		}
		ct, err := p.loadCiphertext(ctx, job.TrueHandle)
		if err != nil {
			return nil, err
		}
		if err := sk.ZeroOutIfConditionIsFalse(ct, cond.AsBlock()); err != nil {
			return nil, fmt.Errorf("zero out: %w", err)
		}
		return sk.MarshalCiphertext(ct)

	case queue.OpPropagate:
		ct, err := p.loadCiphertext(ctx, job.TrueHandle)
		if err != nil {
			return nil, err
		}
		if err := sk.FullPropagateAssign(ct); err != nil {
			return nil, fmt.Errorf("propagate: %w", err)
		}
		return sk.MarshalCiphertext(ct)

	default:
		return nil, fmt.Errorf("unsupported operation: %d", job.Operation)
	}
}

func (p *WorkerPool) loadCiphertext(ctx context.Context, handle string) (fheint.IntegerCiphertext, error) {
	data, err := p.storage.Load(ctx, storage.Handle(handle))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", handle, err)
	}
	ct, err := p.serverKey.UnmarshalCiphertext(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", handle, err)
	}
	return ct, nil
}

func (p *WorkerPool) loadBoolean(ctx context.Context, handle string) (*fheint.BooleanBlock, error) {
	data, err := p.storage.Load(ctx, storage.Handle(handle))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", handle, err)
	}
	block, err := p.serverKey.UnmarshalBlock(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", handle, err)
	}
	return fheint.NewBooleanBlock(block), nil
}
