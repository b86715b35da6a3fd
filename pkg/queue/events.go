package queue

import "github.com/ThreeDotsLabs/watermill/message"

// -------------------------- 基于业务封装 events --------------------------

// PublishStatementStored 发布 sv.statement.stored 事件。
// 在账单密文写入对象存储且元数据入库后调用，通知下游（如归档、对账）。
func PublishStatementStored(pub message.Publisher, payload StatementStoredPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicStatementStored, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicStatementStored, msg)
}

// PublishLinkIssued 发布 sv.link.issued 事件。
func PublishLinkIssued(pub message.Publisher, payload LinkIssuedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicLinkIssued, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicLinkIssued, msg)
}

// PublishLinkDenied 发布 sv.link.denied 事件，用于安全告警的下游消费。
func PublishLinkDenied(pub message.Publisher, payload LinkDeniedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicLinkDenied, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicLinkDenied, msg)
}

// PublishStatementDownloaded 发布 sv.statement.downloaded 事件。
func PublishStatementDownloaded(pub message.Publisher, payload StatementDownloadedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicStatementDownloaded, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicStatementDownloaded, msg)
}

// PublishDownloadFailed 发布 sv.download.failed 事件。
func PublishDownloadFailed(pub message.Publisher, payload DownloadFailedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicDownloadFailed, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicDownloadFailed, msg)
}

// PublishCleanupCompleted 发布 sv.cleanup.completed 事件。
func PublishCleanupCompleted(pub message.Publisher, payload CleanupCompletedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicCleanupCompleted, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicCleanupCompleted, msg)
}

// ParseStatementStored 将 Watermill 消息解析为强类型 Envelope（StatementStoredPayload）。
func ParseStatementStored(msg *message.Message) (Message[StatementStoredPayload], error) {
	return ParseWatermillMessage[StatementStoredPayload](msg)
}

// ParseLinkDenied 将 Watermill 消息解析为强类型 Envelope（LinkDeniedPayload）。
func ParseLinkDenied(msg *message.Message) (Message[LinkDeniedPayload], error) {
	return ParseWatermillMessage[LinkDeniedPayload](msg)
}
