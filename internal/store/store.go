// Package store 负责段落与训练样本的落盘：段落装载、逐条追加、
// 收尾切分与数据集清单。写盘走临时文件加改名，避免半成品文件。
package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"dsgen/pkg/contract"
)

const (
	SegmentsFile = "segments.jsonl"
	TrainFile    = "train.jsonl"
	ValFile      = "valid.jsonl"
	ManifestFile = "dataset_manifest.json"
)

// LoadSegments 读取段落文件。坏行跳过不报错；短于 minChars 的段丢弃。
func LoadSegments(path string, minChars int) ([]contract.Segment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: 打开段落文件: %w", err)
	}
	defer f.Close()

	var segs []contract.Segment
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var seg contract.Segment
		if err := json.Unmarshal(line, &seg); err != nil {
			continue
		}
		if len([]rune(seg.Text)) < minChars {
			continue
		}
		segs = append(segs, seg)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("store: 读段落文件: %w", err)
	}
	return segs, nil
}

// TrainStore 逐条追加训练样本到 train.jsonl，每条立即刷盘，
// 中断后已收样本不丢。
type TrainStore struct {
	f     *os.File
	path  string
	count int
}

// OpenTrain 打开训练样本文件。resume 为真时保留既有内容并续写，
// 既有行数即断点游标；否则清空重建。
func OpenTrain(dir string, resume bool) (*TrainStore, error) {
	path := filepath.Join(dir, TrainFile)
	count := 0
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if resume {
		n, err := countLines(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("store: 统计断点行数: %w", err)
		}
		count = n
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: 打开训练文件: %w", err)
	}
	return &TrainStore{f: f, path: path, count: count}, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			n++
		}
	}
	return n, sc.Err()
}

// Append 追加一条样本并同步到磁盘。
func (s *TrainStore) Append(ex contract.TrainExample) error {
	data, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("store: 序列化样本: %w", err)
	}
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("store: 写训练文件: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("store: 刷盘: %w", err)
	}
	s.count++
	return nil
}

// Count 返回当前累计样本数（含断点前既有样本）。
func (s *TrainStore) Count() int { return s.count }

func (s *TrainStore) Close() error { return s.f.Close() }

// FinalizeSplit 将累积样本按 9:1 重切为训练集与验证集。
// 切分点取 max(1, n*9/10)；仅一条样本时同时复制进两个文件，
// 保证验证集非空。返回 (train, val) 条数。
func FinalizeSplit(dir string) (int, int, error) {
	trainPath := filepath.Join(dir, TrainFile)
	lines, err := readLines(trainPath)
	if err != nil {
		return 0, 0, err
	}
	n := len(lines)
	if n == 0 {
		return 0, 0, fmt.Errorf("store: 无样本可切分: %w", contract.ErrNoAccepted)
	}
	splitIdx := n * 9 / 10
	if splitIdx < 1 {
		splitIdx = 1
	}
	trainLines := lines[:splitIdx]
	valLines := lines[splitIdx:]
	if len(valLines) == 0 {
		valLines = lines // 单条样本复制进两侧
	}
	if err := writeLines(trainPath, trainLines); err != nil {
		return 0, 0, err
	}
	if err := writeLines(filepath.Join(dir, ValFile), valLines); err != nil {
		return 0, 0, err
	}
	return len(trainLines), len(valLines), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: 打开样本文件: %w", err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := bytes.TrimSpace(sc.Bytes()); len(line) > 0 {
			lines = append(lines, string(line))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("store: 读样本文件: %w", err)
	}
	return lines, nil
}

// writeLines 原子写：先写临时文件再改名覆盖。
func writeLines(path string, lines []string) error {
	tmp := path + ".tmp"
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("store: 写临时文件: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: 改名落盘: %w", err)
	}
	return nil
}

// DatasetManifest 记录一次生成运行的来源与结果统计。
type DatasetManifest struct {
	RunID       string         `json:"run_id"`
	Model       string         `json:"model"`
	Mode        string         `json:"mode"`
	GeneratedAt string         `json:"generated_at"`
	Counts      map[string]int `json:"counts"`
}

// WriteManifest 落盘数据集清单。
func WriteManifest(dir string, m DatasetManifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("store: 序列化清单: %w", err)
	}
	path := filepath.Join(dir, ManifestFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("store: 写清单临时文件: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: 清单落盘: %w", err)
	}
	return nil
}
