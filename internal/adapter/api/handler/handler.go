package handler

import (
	"arbitex/internal/usecase"
)

var (
	mediationHandler *MediationHandler
	queryHandler     *MediationQueryHandler
	subChatHandler   *SubChatHandler
)

func Setup(
	mediationUseCase *usecase.MediationUseCase,
	queryUseCase *usecase.MediationQueryUseCase,
	subChatUseCase *usecase.SubChatUseCase,
) {
	mediationHandler = NewMediationHandler(mediationUseCase)
	queryHandler = NewMediationQueryHandler(queryUseCase)
	subChatHandler = NewSubChatHandler(subChatUseCase)
}

func GetMediationHandler() *MediationHandler {
	return mediationHandler
}

func GetMediationQueryHandler() *MediationQueryHandler {
	return queryHandler
}

func GetSubChatHandler() *SubChatHandler {
	return subChatHandler
}
