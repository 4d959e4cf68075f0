package services

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"csvtojira/models"
	"csvtojira/utils"
)

// ReadCSV はCSVファイルを読み込み、ヘッダー名→値のマップの列として返します
// 行の並び順は維持されます。スプレッドシート出力のBOMは取り除きます
func ReadCSV(filePath string) ([]models.CSVRecord, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("CSVオープンエラー: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // 行ごとのフィールド数の差異を許容する

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("CSV読み込みエラー: %w", err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("CSVデータが不足しています（ヘッダー行とデータ行が必要です）")
	}

	headers := records[0]
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	result := make([]models.CSVRecord, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(headers) {
			utils.LogWarn("行 %d: フィールド数が不一致（ヘッダー: %d, 行: %d）", i+2, len(headers), len(record))
		}

		rowData := make(models.CSVRecord)
		for j := 0; j < len(headers) && j < len(record); j++ {
			rowData[headers[j]] = record[j]
		}
		result = append(result, rowData)
	}

	utils.LogInfo("CSVを読み込みました: %s (%d 行)", filePath, len(result))
	return result, nil
}
