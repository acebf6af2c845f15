package valueobject

import "strings"

// Channel представляет сервисный канал, по которому учитывается простой (Value Object)
type Channel string

const (
	ChannelApp           Channel = "APP"
	ChannelUSSD          Channel = "USSD"
	ChannelWeb           Channel = "WEB"
	ChannelSMS           Channel = "SMS"
	ChannelMiddleware    Channel = "MIDDLEWARE"
	ChannelInwardService Channel = "INWARD SERVICE"
)

// AllChannelsTag - значение affected_channel, означающее все каналы
const AllChannelsTag = "ALL"

// AllChannels возвращает фиксированный список каналов в порядке отчета
func AllChannels() []Channel {
	return []Channel{ChannelApp, ChannelUSSD, ChannelWeb, ChannelSMS, ChannelMiddleware, ChannelInwardService}
}

// AllCategories возвращает детальные категории, используемые для классификации отчетов.
// В расчете длительности по каналам не участвуют.
func AllCategories() []string {
	return []string{
		"ADD MONEY", "BILL PAYMENT", "CASH IN", "CASH OUT", "SEND MONEY",
		"MOBILE RECHARGE", "MERCHANT PAYMENT", "REMITTANCE", "B2B", "OTHERS",
	}
}

// String возвращает строковое представление канала
func (c Channel) String() string {
	return string(c)
}

// IsKnown сообщает, входит ли канал в фиксированный список
func (c Channel) IsKnown() bool {
	return channelIndex(c) >= 0
}

// Order возвращает позицию канала в фиксированном списке, -1 для неизвестных
func (c Channel) Order() int {
	return channelIndex(c)
}

// ExpandChannels нормализует значение affected_channel в набор каналов.
// ALL (без учета регистра) раскрывается в полный список, список через запятую
// разбивается, каждый токен обрезается и переводится в верхний регистр.
// Неизвестные теги пропускаются без изменений.
func ExpandChannels(affected string) []Channel {
	value := strings.TrimSpace(affected)
	if value == "" {
		return nil
	}

	if strings.EqualFold(value, AllChannelsTag) {
		return AllChannels()
	}

	parts := strings.Split(value, ",")
	result := make([]Channel, 0, len(parts))
	seen := make(map[Channel]struct{}, len(parts))
	for _, part := range parts {
		ch := Channel(strings.ToUpper(strings.TrimSpace(part)))
		if ch == "" {
			continue
		}
		if _, dup := seen[ch]; dup {
			continue
		}
		seen[ch] = struct{}{}
		result = append(result, ch)
	}

	return result
}

// JoinChannels собирает набор каналов обратно в значение affected_channel
func JoinChannels(channels []Channel) string {
	if len(channels) == len(AllChannels()) && coversAll(channels) {
		return AllChannelsTag
	}

	parts := make([]string, len(channels))
	for i, ch := range channels {
		parts[i] = string(ch)
	}
	return strings.Join(parts, ",")
}

func coversAll(channels []Channel) bool {
	set := make(map[Channel]struct{}, len(channels))
	for _, ch := range channels {
		set[ch] = struct{}{}
	}
	for _, ch := range AllChannels() {
		if _, ok := set[ch]; !ok {
			return false
		}
	}
	return true
}

func channelIndex(c Channel) int {
	for i, known := range AllChannels() {
		if known == c {
			return i
		}
	}
	return -1
}
