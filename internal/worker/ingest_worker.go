package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docuchat/internal/ai"
	"docuchat/internal/model"
	"docuchat/internal/platform/rabbitmq"
	"docuchat/internal/repository"
)

const embeddingBatchSize = 10 // embedding APIs often cap batch size

// IngestWorker consumes document ingest jobs: it chunks the extracted
// text, embeds each chunk, and persists the chunks for retrieval.
type IngestWorker struct {
	conn         *amqp.Connection
	chunkRepo    *repository.ChunkRepository
	docRepo      *repository.DocumentRepository
	llm          *ai.OpenAICompatibleClient
	embCfg       ai.EmbeddingConfig
	queueName    string
	chunkSize    int
	chunkOverlap int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestWorker(
	conn *amqp.Connection,
	chunkRepo *repository.ChunkRepository,
	docRepo *repository.DocumentRepository,
	llm *ai.OpenAICompatibleClient,
	embCfg ai.EmbeddingConfig,
	queueName string,
	chunkSize, chunkOverlap int,
) *IngestWorker {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &IngestWorker{
		conn:         conn,
		chunkRepo:    chunkRepo,
		docRepo:      docRepo,
		llm:          llm,
		embCfg:       embCfg,
		queueName:    queueName,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

func (w *IngestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var job rabbitmq.IngestJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					log.Printf("worker decode ingest job failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.ingest(workerCtx, job); err != nil {
					log.Printf("worker ingest document %d failed: %v", job.DocumentID, err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *IngestWorker) ingest(ctx context.Context, job rabbitmq.IngestJob) error {
	if job.DocumentID == 0 {
		return fmt.Errorf("ingest job missing document id")
	}
	chunks := chunkText(job.Text, w.chunkSize, w.chunkOverlap)
	if len(chunks) == 0 {
		return fmt.Errorf("no extractable text for document %d", job.DocumentID)
	}

	var embeddings [][]float32
	for i := 0; i < len(chunks); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := w.llm.EmbedBatch(ctx, w.embCfg, chunks[i:end])
		if err != nil {
			return fmt.Errorf("embed chunk batch failed: %w", err)
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d chunks, %d embeddings", len(chunks), len(embeddings))
	}

	records := make([]model.DocumentChunk, len(chunks))
	for i := range chunks {
		records[i] = model.DocumentChunk{
			DocumentID: job.DocumentID,
			Content:    chunks[i],
		}
		records[i].SetEmbedding(embeddings[i])
	}
	if err := w.chunkRepo.CreateBatch(records); err != nil {
		return err
	}
	return w.docRepo.Touch(job.DocumentID)
}

func (w *IngestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// chunkText splits text into overlapping chunks by rune count.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		i += size - overlap
		if i >= len(runes) {
			break
		}
	}
	return chunks
}
